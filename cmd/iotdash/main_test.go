package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/lox/iotdash/internal/models"
	"github.com/lox/iotdash/internal/sensors"
)

func TestPrintRecords(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	res := sensors.Result{
		Sensor: sensors.DHT22,
		Records: []models.SensorRecord{
			{Time: t0, Values: map[string]float64{"temperature": 22, "humidity": 55}},
			{Time: t0.Add(time.Minute), Values: map[string]float64{"temperature": 31.5}},
		},
	}

	var buf bytes.Buffer
	if err := printRecords(&buf, time.UTC, res); err != nil {
		t.Fatalf("printRecords: %v", err)
	}
	out := buf.String()

	lines := strings.Split(out, "\n")
	if fields := strings.Fields(lines[0]); strings.Join(fields, ",") != "time,humidity,temperature" {
		t.Errorf("header = %q", lines[0])
	}
	if f := strings.Fields(lines[2]); len(f) != 4 || f[2] != "-" {
		t.Errorf("missing humidity should print as '-': %q", lines[2])
	}
	if !strings.Contains(out, "Current Temperature: 31.50 °C [above_maximum #FF4500]") {
		t.Errorf("expected temperature status line, got:\n%s", out)
	}
	if !strings.Contains(out, "Current Humidity: 55.00 % [nominal #90EE90]") {
		t.Errorf("expected humidity status line, got:\n%s", out)
	}
}

func TestGlobals_OpenSourceRequiresInfluxConfig(t *testing.T) {
	g := &Globals{Driver: "influx", InfluxURL: "http://localhost:8086"}
	if _, err := g.openSource(time.UTC); err == nil {
		t.Error("expected error for incomplete influxdb configuration")
	}
}
