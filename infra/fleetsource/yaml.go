package fleetsource

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/ambudispatch/core/fleet"
)

// YAML reads the fleet from a document with a top-level units list.
type YAML struct {
	Path string
}

type yamlFleet struct {
	Units []fleet.Row `yaml:"units"`
}

func (y YAML) Load(context.Context) ([]fleet.Row, error) {
	data, err := os.ReadFile(y.Path)
	if err != nil {
		return nil, fmt.Errorf("read fleet yaml: %w", err)
	}
	return ParseYAML(data)
}

// ParseYAML decodes a units list.
func ParseYAML(data []byte) ([]fleet.Row, error) {
	var doc yamlFleet
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode fleet yaml: %w", err)
	}
	for i, r := range doc.Units {
		if r.ID == "" {
			return nil, fmt.Errorf("fleet yaml: unit %d has no id", i)
		}
	}
	return doc.Units, nil
}
