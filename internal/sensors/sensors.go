package sensors

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lox/iotdash/internal/metrics"
	"github.com/lox/iotdash/internal/models"
	"github.com/lox/iotdash/internal/pivot"
	"github.com/lox/iotdash/internal/status"
)

// Querier is the field query contract both the InfluxDB client and the
// SQLite store satisfy.
type Querier interface {
	Query(ctx context.Context, measurement string, fields []string, rng models.DateRange) ([]models.Reading, error)
}

// Field maps a raw stored field name to its display name.
type Field struct {
	Raw       string           `yaml:"raw" json:"raw"`
	Name      string           `yaml:"name" json:"name"`
	Label     string           `yaml:"label" json:"label"`
	Unit      string           `yaml:"unit" json:"unit"`
	Threshold models.Threshold `yaml:"threshold" json:"threshold"`
}

// Chart groups fields (by display name) drawn on one set of axes.
type Chart struct {
	ID     string   `yaml:"id" json:"id"`
	Title  string   `yaml:"title" json:"title"`
	Fields []string `yaml:"fields" json:"fields"`
}

type Sensor struct {
	ID          string  `yaml:"id" json:"id"`
	Name        string  `yaml:"name" json:"name"`
	Measurement string  `yaml:"measurement" json:"measurement"`
	Fields      []Field `yaml:"fields" json:"fields"`
	Charts      []Chart `yaml:"charts" json:"charts"`
}

// RawFields returns the stored field names to query.
func (s Sensor) RawFields() []string {
	raw := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		raw[i] = f.Raw
	}
	return raw
}

// Renames maps raw field names to display names.
func (s Sensor) Renames() map[string]string {
	m := make(map[string]string, len(s.Fields))
	for _, f := range s.Fields {
		m[f.Raw] = f.Name
	}
	return m
}

func (s Sensor) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func (s Sensor) Chart(id string) (Chart, bool) {
	for _, c := range s.Charts {
		if c.ID == id {
			return c, true
		}
	}
	return Chart{}, false
}

var DHT22 = Sensor{
	ID:          "dht22",
	Name:        "Temperature & Humidity (DHT22)",
	Measurement: "DHT22",
	Fields: []Field{
		{Raw: "temp_dht", Name: "temperature", Label: "Current Temperature", Unit: "°C",
			Threshold: models.Threshold{Min: models.Bound(15), Max: models.Bound(30)}},
		{Raw: "hum_dht", Name: "humidity", Label: "Current Humidity", Unit: "%",
			Threshold: models.Threshold{Min: models.Bound(30), Max: models.Bound(70)}},
	},
	Charts: []Chart{
		{ID: "temperature", Title: "Temperature (°C)", Fields: []string{"temperature"}},
		{ID: "humidity", Title: "Humidity (%)", Fields: []string{"humidity"}},
	},
}

var MPU6050 = Sensor{
	ID:          "mpu6050",
	Name:        "Motion (MPU6050)",
	Measurement: "MPU6050",
	Fields: []Field{
		{Raw: "acc_x", Name: "acc_x", Label: "Acc X", Unit: "m/s²", Threshold: models.Threshold{Max: models.Bound(2)}},
		{Raw: "acc_y", Name: "acc_y", Label: "Acc Y", Unit: "m/s²", Threshold: models.Threshold{Max: models.Bound(2)}},
		{Raw: "acc_z", Name: "acc_z", Label: "Acc Z", Unit: "m/s²", Threshold: models.Threshold{Max: models.Bound(2)}},
	},
	Charts: []Chart{
		{ID: "acceleration", Title: "Acceleration (m/s²)", Fields: []string{"acc_x", "acc_y", "acc_z"}},
	},
}

// Fetcher composes a Querier with the pivot for a sensor. It holds no
// mutable state and is safe for concurrent use.
type Fetcher struct {
	q Querier
}

func NewFetcher(q Querier) *Fetcher {
	return &Fetcher{q: q}
}

// Fetch returns the sensor's records within rng under display names, sorted
// by time. No matching rows is an empty slice and a nil error.
func (f *Fetcher) Fetch(ctx context.Context, s Sensor, rng models.DateRange) ([]models.SensorRecord, error) {
	readings, err := f.q.Query(ctx, s.Measurement, s.RawFields(), rng)
	if err != nil {
		metrics.SensorFetches.WithLabelValues(s.ID, "error").Inc()
		return nil, err
	}
	records := pivot.Rename(pivot.Pivot(readings), s.Renames())
	if len(records) == 0 {
		metrics.SensorFetches.WithLabelValues(s.ID, "empty").Inc()
	} else {
		metrics.SensorFetches.WithLabelValues(s.ID, "ok").Inc()
	}
	return records, nil
}

func (f *Fetcher) FetchDHT22(ctx context.Context, rng models.DateRange) ([]models.SensorRecord, error) {
	return f.Fetch(ctx, DHT22, rng)
}

func (f *Fetcher) FetchMPU6050(ctx context.Context, rng models.DateRange) ([]models.SensorRecord, error) {
	return f.Fetch(ctx, MPU6050, rng)
}

// Result is one sensor's outcome of a refresh.
type Result struct {
	Sensor  Sensor
	Records []models.SensorRecord
	Err     error
}

// Empty reports a successful fetch that matched nothing.
func (r Result) Empty() bool {
	return r.Err == nil && len(r.Records) == 0
}

// Cards classifies the latest present value of each field. Fields with no
// value in any record get no card.
func (r Result) Cards() []status.Card {
	var cards []status.Card
	for _, f := range r.Sensor.Fields {
		v, at, ok := Latest(r.Records, f.Name)
		if !ok {
			continue
		}
		cards = append(cards, status.NewCard(f.Name, f.Label, f.Unit, v, at, f.Threshold))
	}
	return cards
}

// FetchAll fetches every sensor concurrently. Each sensor succeeds or
// fails on its own; results are in input order.
func (f *Fetcher) FetchAll(ctx context.Context, sensors []Sensor, rng models.DateRange) []Result {
	results := make([]Result, len(sensors))
	var g errgroup.Group
	for i, s := range sensors {
		g.Go(func() error {
			records, err := f.Fetch(ctx, s, rng)
			if err != nil {
				log.Printf("fetch %s %s: %v", s.ID, rng, err)
			}
			results[i] = Result{Sensor: s, Records: records, Err: err}
			return nil
		})
	}
	g.Wait()
	return results
}

// Latest returns the most recent present value of field.
func Latest(records []models.SensorRecord, field string) (float64, time.Time, bool) {
	for i := len(records) - 1; i >= 0; i-- {
		if v, ok := records[i].Value(field); ok {
			return v, records[i].Time, true
		}
	}
	return 0, time.Time{}, false
}
