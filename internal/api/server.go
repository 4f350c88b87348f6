package api

import (
	"context"
	"html/template"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/lox/iotdash/internal/sensors"
)

// DataSource is a field query client that can also report reachability.
type DataSource interface {
	sensors.Querier
	Ping(ctx context.Context) error
}

type Server struct {
	source  DataSource
	fetcher *sensors.Fetcher
	catalog sensors.Catalog
	port    string
	loc     *time.Location
	tmpl    *template.Template
	origins []string
	now     func() time.Time
}

func NewServer(source DataSource, catalog sensors.Catalog, port string, loc *time.Location) *Server {
	if loc == nil {
		loc = time.UTC
	}
	return &Server{
		source:  source,
		fetcher: sensors.NewFetcher(source),
		catalog: catalog,
		port:    port,
		loc:     loc,
		tmpl:    newTemplates(),
		now:     time.Now,
	}
}

// AllowOrigins enables CORS on the JSON API for the given origins.
func (s *Server) AllowOrigins(origins ...string) {
	s.origins = origins
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /charts/{sensor}/{chart}", s.handleChart)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("/api/sensors/{sensor}", s.withCORS(http.HandlerFunc(s.handleAPISensor)))
	return mux
}

func (s *Server) withCORS(h http.Handler) http.Handler {
	if len(s.origins) == 0 {
		return h
	}
	c := cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet},
		MaxAge:         600,
	})
	return c.Handler(h)
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
