package tsdb

import (
	"strings"
	"testing"
	"time"

	"github.com/lox/iotdash/internal/models"
)

func TestFilter_Flux(t *testing.T) {
	rng := models.DateRange{
		Start: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
	}
	f := NewFilter("sensors", "DHT22", []string{"temp_dht", "hum_dht"}, rng, time.UTC)

	want := `from(bucket: "sensors")
  |> range(start: 2025-03-01T00:00:00Z, stop: 2025-03-03T00:00:00Z)
  |> filter(fn: (r) => r["_measurement"] == "DHT22")
  |> filter(fn: (r) => r["_field"] == "temp_dht" or r["_field"] == "hum_dht")
  |> keep(columns: ["_time", "_field", "_value"])`
	if got := f.Flux(); got != want {
		t.Errorf("Flux() =\n%s\nwant\n%s", got, want)
	}
}

func TestFilter_Interval(t *testing.T) {
	melb := time.FixedZone("AEDT", 11*60*60)
	rng := models.DateRange{
		Start: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	f := NewFilter("b", "m", []string{"x"}, rng, melb)

	if got := f.Start.UTC().Format(time.RFC3339); got != "2025-02-28T13:00:00Z" {
		t.Errorf("Start = %s, want local midnight in UTC", got)
	}
	if got := f.Stop.Format("15:04:05"); got != "23:59:59" {
		t.Errorf("Stop = %s, want 23:59:59", got)
	}
	if !strings.Contains(f.Flux(), "stop: 2025-03-01T13:00:00Z") {
		t.Errorf("Flux stop should be end of local day, got:\n%s", f.Flux())
	}
}

func TestFluxString_Escapes(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`plain`, `"plain"`},
		{`a"b`, `"a\"b"`},
		{`back\slash`, `"back\\slash"`},
		{`${inject}`, `"\${inject}"`},
		{"new\nline", `"new\nline"`},
	}
	for _, tt := range tests {
		if got := fluxString(tt.in); got != tt.want {
			t.Errorf("fluxString(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestFilter_FieldInjectionStaysQuoted(t *testing.T) {
	f := Filter{
		Bucket:      "b",
		Measurement: "m",
		Fields:      []string{`x" or true or r["_field"] == "y`},
		Start:       time.Unix(0, 0),
		Stop:        time.Unix(60, 0),
	}
	flux := f.Flux()
	if !strings.Contains(flux, `r["_field"] == "x\" or true or r[\"_field\"] == \"y"`) {
		t.Errorf("field name not quoted as a single literal:\n%s", flux)
	}
}
