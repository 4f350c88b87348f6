package status

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/lox/iotdash/internal/models"
)

func TestClassify(t *testing.T) {
	temp := models.Threshold{Min: models.Bound(15), Max: models.Bound(30)}
	accel := models.Threshold{Max: models.Bound(2)}

	tests := []struct {
		name  string
		value float64
		th    models.Threshold
		want  Status
	}{
		{"below minimum", 10, temp, BelowMinimum},
		{"above maximum", 35, temp, AboveMaximum},
		{"nominal", 20, temp, Nominal},
		{"min is inclusive", 15, temp, Nominal},
		{"max is inclusive", 30, temp, Nominal},
		{"no bounds", -1000, models.Threshold{}, Nominal},
		{"max only under", -50, accel, Nominal},
		{"max only over", 2.01, accel, AboveMaximum},
		{"min only", 29, models.Threshold{Min: models.Bound(30)}, BelowMinimum},
		{"positive infinity", math.Inf(1), temp, AboveMaximum},
		{"negative infinity", math.Inf(-1), temp, BelowMinimum},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.value, tt.th); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

// NaN never triggers a bound; a missing or corrupt reading shows as nominal.
func TestClassify_NaNIsNominal(t *testing.T) {
	ths := []models.Threshold{
		{},
		{Min: models.Bound(15)},
		{Max: models.Bound(30)},
		{Min: models.Bound(15), Max: models.Bound(30)},
	}
	for _, th := range ths {
		if got := Classify(math.NaN(), th); got != Nominal {
			t.Errorf("Classify(NaN, %+v) = %v, want nominal", th, got)
		}
	}
}

// An inverted threshold violates both bounds; max takes precedence.
func TestClassify_MaxOverridesMin(t *testing.T) {
	th := models.Threshold{Min: models.Bound(30), Max: models.Bound(15)}
	if got := Classify(20, th); got != AboveMaximum {
		t.Errorf("Classify(20, min=30, max=15) = %v, want above_maximum", got)
	}
}

func TestClassify_Monotonic(t *testing.T) {
	th := models.Threshold{Min: models.Bound(15), Max: models.Bound(30)}
	rank := map[Status]int{BelowMinimum: 0, Nominal: 1, AboveMaximum: 2}

	prev := Classify(-10, th)
	for v := -10.0; v <= 50; v += 0.25 {
		got := Classify(v, th)
		if rank[got] < rank[prev] {
			t.Fatalf("status went from %v to %v at %v", prev, got, v)
		}
		if rank[got]-rank[prev] > 1 {
			t.Fatalf("status skipped from %v to %v at %v", prev, got, v)
		}
		prev = got
	}
	if prev != AboveMaximum {
		t.Errorf("final status = %v, want above_maximum", prev)
	}
}

func TestStatus_Colors(t *testing.T) {
	if Nominal.Color() != "#90EE90" {
		t.Errorf("nominal color = %s", Nominal.Color())
	}
	if BelowMinimum.Color() != "#FFA07A" {
		t.Errorf("below color = %s", BelowMinimum.Color())
	}
	if AboveMaximum.Color() != "#FF4500" {
		t.Errorf("above color = %s", AboveMaximum.Color())
	}
}

func TestCard_JSON(t *testing.T) {
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	card := NewCard("temperature", "Current Temperature", "°C", 35, at, models.Threshold{Max: models.Bound(30)})

	b, err := json.Marshal(card)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"status":"above_maximum"`) {
		t.Errorf("expected text status in %s", b)
	}
	if card.Color != "#FF4500" {
		t.Errorf("Color = %s, want #FF4500", card.Color)
	}
}
