package api

import (
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"net/url"

	"github.com/lox/iotdash/internal/chartimg"
	"github.com/lox/iotdash/internal/metrics"
	"github.com/lox/iotdash/internal/models"
	"github.com/lox/iotdash/internal/sensors"
	"github.com/lox/iotdash/internal/tsdb"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := IndexData{Start: q.Get("start"), End: q.Get("end")}

	rng, err := s.dateRange(r)
	if err != nil {
		data.FormError = err.Error()
		w.WriteHeader(http.StatusBadRequest)
		s.render(w, "index.html", data)
		return
	}
	data.Start = rng.Start.Format(models.DateLayout)
	data.End = rng.End.Format(models.DateLayout)

	if q.Get("refresh") == "" {
		data.Prompt = true
		s.render(w, "index.html", data)
		return
	}

	for _, res := range s.fetcher.FetchAll(r.Context(), s.catalog, rng) {
		data.Panels = append(data.Panels, s.panel(res, rng))
	}
	s.render(w, "index.html", data)
}

func (s *Server) panel(res sensors.Result, rng models.DateRange) Panel {
	p := Panel{ID: res.Sensor.ID, Name: res.Sensor.Name}

	var dse *tsdb.DataSourceError
	switch {
	case errors.As(res.Err, &dse):
		p.Error = fmt.Sprintf("Error retrieving data from the data source: %v", dse)
		return p
	case res.Err != nil:
		p.Error = fmt.Sprintf("Unexpected error: %v", res.Err)
		return p
	case res.Empty():
		p.NoData = true
		return p
	}

	for _, c := range res.Sensor.Charts {
		png, err := s.renderChart(res.Sensor, c, res.Records, 0, 0)
		if err != nil {
			log.Printf("render chart %s/%s: %v", res.Sensor.ID, c.ID, err)
			continue
		}
		p.Charts = append(p.Charts, ChartImage{
			Title: c.Title,
			Src:   template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png)),
			Href:  chartHref(res.Sensor.ID, c.ID, rng),
		})
	}

	for _, card := range res.Cards() {
		card.ObservedAt = card.ObservedAt.In(s.loc)
		p.Cards = append(p.Cards, card)
	}
	return p
}

func (s *Server) renderChart(sensor sensors.Sensor, c sensors.Chart, records []models.SensorRecord, width, height int) ([]byte, error) {
	chart := chartimg.FromRecords(c.Title, records, c.Fields, nil)
	chart.Location = s.loc
	chart.Width, chart.Height = width, height
	png, err := chartimg.Render(chart)
	if err != nil {
		return nil, err
	}
	metrics.ChartsRendered.WithLabelValues(sensor.ID).Inc()
	return png, nil
}

func chartHref(sensor, chart string, rng models.DateRange) string {
	v := url.Values{}
	v.Set("start", rng.Start.Format(models.DateLayout))
	v.Set("end", rng.End.Format(models.DateLayout))
	return "/charts/" + url.PathEscape(sensor) + "/" + url.PathEscape(chart) + "?" + v.Encode()
}

// dateRange reads start and end from the query, defaulting to yesterday
// and today.
func (s *Server) dateRange(r *http.Request) (models.DateRange, error) {
	def := models.DefaultDateRange(s.now().In(s.loc))
	start, end := r.URL.Query().Get("start"), r.URL.Query().Get("end")
	if start == "" {
		start = def.Start.Format(models.DateLayout)
	}
	if end == "" {
		end = def.End.Format(models.DateLayout)
	}
	return models.ParseDateRange(start, end, s.loc)
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, name, data); err != nil {
		log.Printf("template error: %v", err)
	}
}
