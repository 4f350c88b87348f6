package sensors

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Catalog is the ordered set of sensors shown on the dashboard.
type Catalog []Sensor

// DefaultCatalog returns the built-in DHT22 and MPU6050 sensors.
func DefaultCatalog() Catalog {
	return Catalog{DHT22, MPU6050}
}

func (c Catalog) Find(id string) (Sensor, bool) {
	for _, s := range c {
		if s.ID == id {
			return s, true
		}
	}
	return Sensor{}, false
}

type catalogFile struct {
	Sensors []Sensor `yaml:"sensors"`
}

// LoadCatalog reads a YAML sensor catalogue. An empty path returns the
// defaults.
func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sensor catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML sensor catalogue. Sensors
// without charts get one chart per field.
func ParseCatalog(data []byte) (Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse sensor catalog: %w", err)
	}
	if len(f.Sensors) == 0 {
		return nil, errors.New("sensor catalog defines no sensors")
	}

	seen := make(map[string]bool)
	cat := make(Catalog, 0, len(f.Sensors))
	for _, s := range f.Sensors {
		if len(s.Charts) == 0 {
			for _, fl := range s.Fields {
				s.Charts = append(s.Charts, Chart{ID: fl.Name, Title: chartTitle(fl), Fields: []string{fl.Name}})
			}
		}
		if err := validate(s); err != nil {
			return nil, err
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("sensor %q defined twice", s.ID)
		}
		seen[s.ID] = true
		cat = append(cat, s)
	}
	return cat, nil
}

func chartTitle(f Field) string {
	title := f.Label
	if title == "" {
		title = f.Name
	}
	if f.Unit != "" {
		title += " (" + f.Unit + ")"
	}
	return title
}

func validate(s Sensor) error {
	if s.ID == "" {
		return errors.New("sensor id is required")
	}
	if s.Measurement == "" {
		return fmt.Errorf("sensor %s: measurement is required", s.ID)
	}
	if len(s.Fields) == 0 {
		return fmt.Errorf("sensor %s: at least one field is required", s.ID)
	}

	raws := make(map[string]bool)
	names := make(map[string]bool)
	for _, f := range s.Fields {
		if f.Raw == "" || f.Name == "" {
			return fmt.Errorf("sensor %s: fields need raw and name", s.ID)
		}
		if raws[f.Raw] || names[f.Name] {
			return fmt.Errorf("sensor %s: duplicate field %s", s.ID, f.Name)
		}
		raws[f.Raw] = true
		names[f.Name] = true
	}

	for _, c := range s.Charts {
		if c.ID == "" {
			return fmt.Errorf("sensor %s: chart id is required", s.ID)
		}
		for _, name := range c.Fields {
			if !names[name] {
				return fmt.Errorf("sensor %s: chart %s references unknown field %s", s.ID, c.ID, name)
			}
		}
	}
	return nil
}
