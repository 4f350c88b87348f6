package status

import (
	"time"

	"github.com/lox/iotdash/internal/models"
)

// Status is the classification of a reading against its threshold.
type Status int

const (
	Nominal Status = iota
	BelowMinimum
	AboveMaximum
)

func (s Status) String() string {
	switch s {
	case BelowMinimum:
		return "below_minimum"
	case AboveMaximum:
		return "above_maximum"
	default:
		return "nominal"
	}
}

// Color returns the card background colour for the status.
func (s Status) Color() string {
	switch s {
	case BelowMinimum:
		return "#FFA07A"
	case AboveMaximum:
		return "#FF4500"
	default:
		return "#90EE90"
	}
}

// CSSClass returns the CSS class for styling
func (s Status) CSSClass() string {
	switch s {
	case BelowMinimum:
		return "status-low"
	case AboveMaximum:
		return "status-high"
	default:
		return "status-ok"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Classify maps value onto a status. Bounds are inclusive. The max check
// runs after the min check and wins if both trigger. NaN fails every
// comparison and so is always Nominal.
func Classify(value float64, t models.Threshold) Status {
	st := Nominal
	if t.Min != nil && value < *t.Min {
		st = BelowMinimum
	}
	if t.Max != nil && value > *t.Max {
		st = AboveMaximum
	}
	return st
}

// Card is the latest value of one quantity ready for display.
type Card struct {
	Field      string    `json:"field"`
	Label      string    `json:"label"`
	Unit       string    `json:"unit"`
	Value      float64   `json:"value"`
	Status     Status    `json:"status"`
	Color      string    `json:"color"`
	ObservedAt time.Time `json:"observed_at"`
}

// NewCard classifies value and fills in the display colour.
func NewCard(field, label, unit string, value float64, observedAt time.Time, t models.Threshold) Card {
	st := Classify(value, t)
	return Card{
		Field:      field,
		Label:      label,
		Unit:       unit,
		Value:      value,
		Status:     st,
		Color:      st.Color(),
		ObservedAt: observedAt,
	}
}
