// Package pivot reshapes long-format readings (one row per timestamp per
// field) into wide-format records (one row per timestamp).
package pivot

import (
	"sort"

	"github.com/lox/iotdash/internal/models"
)

// Pivot groups readings by timestamp into records sorted ascending by time.
// When the same (timestamp, field) pair appears more than once, the last
// value in input order wins. Fields not sampled at a timestamp are absent
// from that record.
func Pivot(readings []models.Reading) []models.SensorRecord {
	records := make([]models.SensorRecord, 0)
	if len(readings) == 0 {
		return records
	}

	// Keyed by UnixNano so timestamps in different zones still group.
	index := make(map[int64]int)
	for _, r := range readings {
		key := r.Time.UnixNano()
		i, ok := index[key]
		if !ok {
			i = len(records)
			index[key] = i
			records = append(records, models.SensorRecord{
				Time:   r.Time,
				Values: make(map[string]float64),
			})
		}
		records[i].Values[r.Field] = r.Value
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Time.Before(records[j].Time)
	})
	return records
}

// Flatten is the inverse of Pivot: it emits one reading per present field,
// records in order and fields sorted by name within a record.
func Flatten(records []models.SensorRecord) []models.Reading {
	readings := make([]models.Reading, 0)
	for _, rec := range records {
		for _, f := range rec.Fields() {
			readings = append(readings, models.Reading{Time: rec.Time, Field: f, Value: rec.Values[f]})
		}
	}
	return readings
}

// Columns returns the sorted set of field names present in any record.
func Columns(records []models.SensorRecord) []string {
	seen := make(map[string]bool)
	cols := make([]string, 0)
	for _, rec := range records {
		for f := range rec.Values {
			if !seen[f] {
				seen[f] = true
				cols = append(cols, f)
			}
		}
	}
	sort.Strings(cols)
	return cols
}

// Rename returns new records with field names mapped through names. Fields
// without a mapping keep their name.
func Rename(records []models.SensorRecord, names map[string]string) []models.SensorRecord {
	out := make([]models.SensorRecord, len(records))
	for i, rec := range records {
		values := make(map[string]float64, len(rec.Values))
		for f, v := range rec.Values {
			if n, ok := names[f]; ok {
				f = n
			}
			values[f] = v
		}
		out[i] = models.SensorRecord{Time: rec.Time, Values: values}
	}
	return out
}
