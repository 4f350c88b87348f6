package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/lox/iotdash/internal/metrics"
	"github.com/lox/iotdash/internal/models"
	"github.com/lox/iotdash/internal/tsdb"
)

// Store serves readings from a SQLite database laid out as one row per
// (measurement, field, timestamp). It never writes readings.
type Store struct {
	db  *sql.DB
	loc *time.Location
}

func New(db *sql.DB, loc *time.Location) *Store {
	if loc == nil {
		loc = time.UTC
	}
	return &Store{db: db, loc: loc}
}

// Query returns the readings of fields in measurement within rng, in
// timestamp order. Errors are reported as *tsdb.DataSourceError.
func (s *Store) Query(ctx context.Context, measurement string, fields []string, rng models.DateRange) ([]models.Reading, error) {
	if len(fields) == 0 {
		return nil, &tsdb.DataSourceError{Op: "query", Measurement: measurement, Err: errors.New("no fields requested")}
	}

	from, to := rng.Interval(s.loc)
	args := []any{measurement, from.UnixMilli(), to.Add(time.Second).UnixMilli()}
	placeholders := make([]string, len(fields))
	for i, f := range fields {
		placeholders[i] = "?"
		args = append(args, f)
	}

	start := time.Now()
	readings, err := s.queryReadings(ctx, `
		SELECT ts, field, value
		FROM readings
		WHERE measurement = ? AND ts >= ? AND ts < ? AND field IN (`+strings.Join(placeholders, ", ")+`)
		ORDER BY ts, rowid
	`, args...)
	metrics.QueryLatency.WithLabelValues("sqlite", measurement).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("sqlite", measurement, "error").Inc()
		return nil, &tsdb.DataSourceError{Op: "query", Measurement: measurement, Err: err}
	}
	metrics.QueriesTotal.WithLabelValues("sqlite", measurement, "ok").Inc()
	metrics.ReadingsReturned.WithLabelValues("sqlite", measurement).Add(float64(len(readings)))
	return readings, nil
}

func (s *Store) queryReadings(ctx context.Context, query string, args ...any) ([]models.Reading, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	readings := make([]models.Reading, 0)
	for rows.Next() {
		var (
			ts int64
			r  models.Reading
		)
		if err := rows.Scan(&ts, &r.Field, &r.Value); err != nil {
			return nil, err
		}
		r.Time = time.UnixMilli(ts).In(s.loc)
		readings = append(readings, r)
	}
	return readings, rows.Err()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &tsdb.DataSourceError{Op: "ping", Err: err}
	}
	return nil
}
