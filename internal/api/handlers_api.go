package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/lox/iotdash/internal/models"
	"github.com/lox/iotdash/internal/pivot"
	"github.com/lox/iotdash/internal/sensors"
	"github.com/lox/iotdash/internal/status"
)

const maxChartSize = 2000

func (s *Server) handleAPISensor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondWithError(w, NewAPIError(ErrorCodeMethodNotAllowed, "method not allowed", http.StatusMethodNotAllowed))
		return
	}

	sensor, ok := s.catalog.Find(r.PathValue("sensor"))
	if !ok {
		respondWithError(w, NewAPIError(ErrorCodeNotFound, fmt.Sprintf("unknown sensor %q", r.PathValue("sensor")), http.StatusNotFound))
		return
	}
	rng, err := s.dateRange(r)
	if err != nil {
		respondWithError(w, NewAPIError(ErrorCodeBadRequest, err.Error(), http.StatusBadRequest))
		return
	}

	records, err := s.fetcher.Fetch(r.Context(), sensor, rng)
	if err != nil {
		respondWithError(w, fetchError(err))
		return
	}

	res := sensors.Result{Sensor: sensor, Records: records}
	cards := res.Cards()
	if cards == nil {
		cards = []status.Card{}
	}
	respondWithJSON(w, http.StatusOK, SensorResponse{
		Sensor:      sensor.ID,
		Measurement: sensor.Measurement,
		Start:       rng.Start.Format(models.DateLayout),
		End:         rng.End.Format(models.DateLayout),
		Columns:     pivot.Columns(records),
		Records:     records,
		Cards:       cards,
	})
}

// handleChart serves one chart of a sensor as a PNG.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	sensor, ok := s.catalog.Find(r.PathValue("sensor"))
	if !ok {
		respondWithError(w, NewAPIError(ErrorCodeNotFound, fmt.Sprintf("unknown sensor %q", r.PathValue("sensor")), http.StatusNotFound))
		return
	}
	chart, ok := sensor.Chart(r.PathValue("chart"))
	if !ok {
		respondWithError(w, NewAPIError(ErrorCodeNotFound, fmt.Sprintf("unknown chart %q", r.PathValue("chart")), http.StatusNotFound))
		return
	}
	rng, err := s.dateRange(r)
	if err != nil {
		respondWithError(w, NewAPIError(ErrorCodeBadRequest, err.Error(), http.StatusBadRequest))
		return
	}
	width, err := sizeParam(r, "width")
	if err != nil {
		respondWithError(w, NewAPIError(ErrorCodeBadRequest, err.Error(), http.StatusBadRequest))
		return
	}
	height, err := sizeParam(r, "height")
	if err != nil {
		respondWithError(w, NewAPIError(ErrorCodeBadRequest, err.Error(), http.StatusBadRequest))
		return
	}

	records, err := s.fetcher.Fetch(r.Context(), sensor, rng)
	if err != nil {
		respondWithError(w, fetchError(err))
		return
	}
	png, err := s.renderChart(sensor, chart, records, width, height)
	if err != nil {
		respondWithError(w, NewAPIError(ErrorCodeBadRequest, err.Error(), http.StatusBadRequest))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=60")
	w.Write(png)
}

func sizeParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > maxChartSize {
		return 0, fmt.Errorf("%s must be between 1 and %d", name, maxChartSize)
	}
	return n, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := HealthStatus{Status: "ok"}
	if err := s.source.Ping(ctx); err != nil {
		health.Status = "error"
		health.Errors = append(health.Errors, err.Error())
		respondWithJSON(w, http.StatusServiceUnavailable, health)
		return
	}
	respondWithJSON(w, http.StatusOK, health)
}
