package seed

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed presets/*.yaml
var presetFS embed.FS

// CategoryPreset is one category and the tag pool of its posts.
type CategoryPreset struct {
	Name string   `yaml:"name"`
	Tags []string `yaml:"tags"`
}

// Preset describes the taxonomy a seed run creates.
type Preset struct {
	Categories []CategoryPreset `yaml:"categories"`
}

// ParsePreset decodes a YAML preset. Entries without a name are rejected.
func ParsePreset(data []byte) (*Preset, error) {
	var p Preset
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse preset: %w", err)
	}
	if len(p.Categories) == 0 {
		return nil, fmt.Errorf("preset has no categories")
	}
	for i, c := range p.Categories {
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("preset category %d has no name", i)
		}
	}
	return &p, nil
}

// LoadPreset reads a preset by name from the built-in set, or from disk when
// name ends in .yaml or .yml.
func LoadPreset(name string) (*Preset, error) {
	if name == "" {
		name = "default"
	}
	var (
		data []byte
		err  error
	)
	if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
		// #nosec G304: operator-supplied path
		data, err = os.ReadFile(name)
	} else {
		data, err = presetFS.ReadFile("presets/" + name + ".yaml")
	}
	if err != nil {
		return nil, fmt.Errorf("load preset %q: %w", name, err)
	}
	return ParsePreset(data)
}
