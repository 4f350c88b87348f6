package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

const DateLayout = "2006-01-02"

// Reading is one long-format row: a single field sampled at a timestamp.
type Reading struct {
	Time  time.Time
	Field string
	Value float64
}

// SensorRecord is one wide-format row. A field missing from Values was not
// sampled at Time; it is not zero.
type SensorRecord struct {
	Time   time.Time
	Values map[string]float64
}

// Value returns the field's value and whether it was sampled.
func (r SensorRecord) Value(field string) (float64, bool) {
	v, ok := r.Values[field]
	return v, ok
}

// Fields returns the record's sampled field names in sorted order.
func (r SensorRecord) Fields() []string {
	fields := make([]string, 0, len(r.Values))
	for f := range r.Values {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// MarshalJSON flattens the record to {"time": ..., "<field>": value, ...}.
// Missing fields are omitted rather than encoded as 0.
func (r SensorRecord) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(r.Values)+1)
	for f, v := range r.Values {
		m[f] = v
	}
	m["time"] = r.Time.Format(time.RFC3339Nano)
	return json.Marshal(m)
}

type DateRange struct {
	Start time.Time
	End   time.Time
}

// ParseDateRange parses two YYYY-MM-DD dates. An end before start is
// allowed and yields no data downstream.
func ParseDateRange(start, end string, loc *time.Location) (DateRange, error) {
	s, err := time.ParseInLocation(DateLayout, start, loc)
	if err != nil {
		return DateRange{}, fmt.Errorf("parse start date: %w", err)
	}
	e, err := time.ParseInLocation(DateLayout, end, loc)
	if err != nil {
		return DateRange{}, fmt.Errorf("parse end date: %w", err)
	}
	return DateRange{Start: s, End: e}, nil
}

// DefaultDateRange covers yesterday and today.
func DefaultDateRange(now time.Time) DateRange {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return DateRange{Start: today.AddDate(0, 0, -1), End: today}
}

// Interval returns the closed interval [start 00:00:00, end 23:59:59] in loc.
func (d DateRange) Interval(loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	from := time.Date(d.Start.Year(), d.Start.Month(), d.Start.Day(), 0, 0, 0, 0, loc)
	to := time.Date(d.End.Year(), d.End.Month(), d.End.Day(), 23, 59, 59, 0, loc)
	return from, to
}

// Inverted reports whether the range ends before it starts.
func (d DateRange) Inverted() bool {
	return d.End.Before(d.Start)
}

func (d DateRange) String() string {
	return d.Start.Format(DateLayout) + ".." + d.End.Format(DateLayout)
}

// Threshold bounds a displayed quantity. Nil bounds are not checked.
type Threshold struct {
	Min *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max *float64 `yaml:"max,omitempty" json:"max,omitempty"`
}

// Bound is a helper for building thresholds from literals.
func Bound(v float64) *float64 {
	return &v
}
