package api

import (
	"html/template"

	"github.com/lox/iotdash/internal/models"
	"github.com/lox/iotdash/internal/status"
)

// IndexData is the dashboard page.
type IndexData struct {
	Start     string
	End       string
	FormError string
	// Prompt is set until the user asks for a refresh.
	Prompt bool
	Panels []Panel
}

// Panel is one sensor's section of the dashboard. Exactly one of Error,
// NoData or Charts is populated.
type Panel struct {
	ID     string
	Name   string
	Error  string
	NoData bool
	Charts []ChartImage
	Cards  []status.Card
}

type ChartImage struct {
	Title string
	Src   template.URL
	Href  string
}

// SensorResponse is the JSON form of one sensor's refresh.
type SensorResponse struct {
	Sensor      string                `json:"sensor"`
	Measurement string                `json:"measurement"`
	Start       string                `json:"start"`
	End         string                `json:"end"`
	Columns     []string              `json:"columns"`
	Records     []models.SensorRecord `json:"records"`
	Cards       []status.Card         `json:"cards"`
}

// HealthStatus represents the health of the data source.
type HealthStatus struct {
	Status string   `json:"status"`
	Errors []string `json:"errors,omitempty"`
}
