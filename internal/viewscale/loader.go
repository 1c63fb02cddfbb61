package viewscale

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wonny/marketviews/internal/contracts"
)

// File is the YAML shape of a scale definition:
//
//	name: extended
//	levels: [Strong Underweight, Underweight, Neutral, Overweight, Strong Overweight]
type File struct {
	Name   string   `yaml:"name"`
	Levels []string `yaml:"levels"`
}

// Parse decodes a scale definition; unknown keys are an error
func Parse(data []byte) (*Scale, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode scale: %w", err)
	}

	if f.Name == "" {
		return nil, fmt.Errorf("decode scale: name is required")
	}

	levels := make([]contracts.View, len(f.Levels))
	for i, l := range f.Levels {
		levels[i] = contracts.View(l)
	}

	return New(f.Name, levels)
}

// LoadFile reads a scale definition from path
func LoadFile(path string) (*Scale, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scale file: %w", err)
	}
	return Parse(data)
}

// Resolve picks the scale configured by file (preferred) or name
func Resolve(name, file string) (*Scale, error) {
	if file != "" {
		return LoadFile(file)
	}
	return ByName(name)
}
