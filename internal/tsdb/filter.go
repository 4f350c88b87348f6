package tsdb

import (
	"fmt"
	"strings"
	"time"

	"github.com/lox/iotdash/internal/models"
)

// Filter selects rows of one measurement whose field is any of Fields,
// restricted to the closed interval [Start, Stop].
type Filter struct {
	Bucket      string
	Measurement string
	Fields      []string
	Start       time.Time
	Stop        time.Time
}

// NewFilter builds a filter for a date range interpreted in loc.
func NewFilter(bucket, measurement string, fields []string, rng models.DateRange, loc *time.Location) Filter {
	start, stop := rng.Interval(loc)
	return Filter{
		Bucket:      bucket,
		Measurement: measurement,
		Fields:      fields,
		Start:       start,
		Stop:        stop,
	}
}

// Flux renders the filter as a Flux query. range() treats stop as
// exclusive, so one second is added to keep the last second of Stop.
func (f Filter) Flux() string {
	var b strings.Builder
	fmt.Fprintf(&b, "from(bucket: %s)\n", fluxString(f.Bucket))
	fmt.Fprintf(&b, "  |> range(start: %s, stop: %s)\n",
		f.Start.UTC().Format(time.RFC3339),
		f.Stop.Add(time.Second).UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "  |> filter(fn: (r) => r[\"_measurement\"] == %s)\n", fluxString(f.Measurement))
	if len(f.Fields) > 0 {
		fmt.Fprintf(&b, "  |> filter(fn: (r) => %s)\n", f.fieldPredicate())
	}
	b.WriteString(`  |> keep(columns: ["_time", "_field", "_value"])`)
	return b.String()
}

func (f Filter) fieldPredicate() string {
	preds := make([]string, len(f.Fields))
	for i, field := range f.Fields {
		preds[i] = fmt.Sprintf(`r["_field"] == %s`, fluxString(field))
	}
	return strings.Join(preds, " or ")
}

var fluxEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"${", `\${`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

// fluxString quotes s as a Flux string literal.
func fluxString(s string) string {
	return `"` + fluxEscaper.Replace(s) + `"`
}
