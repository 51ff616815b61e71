package persona

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk persona document.
type File struct {
	Personas []Persona `yaml:"personas"`
}

// LoadFile reads personas from a YAML document. An empty path yields Seed().
func LoadFile(path string) ([]Persona, error) {
	if path == "" {
		return Seed(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read persona file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a persona document and validates every entry.
func Parse(data []byte) ([]Persona, error) {
	var doc File
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode persona file: %w", err)
	}
	if len(doc.Personas) == 0 {
		return nil, errors.New("persona file defines no personas")
	}

	seen := make(map[string]struct{}, len(doc.Personas))
	for i, p := range doc.Personas {
		if p.ID == "" || p.Name == "" {
			return nil, fmt.Errorf("persona #%d: id and name are required", i)
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("duplicate persona id %q", p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return doc.Personas, nil
}
