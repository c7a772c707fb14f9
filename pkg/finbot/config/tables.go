package config

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tables is the data that drives classification, slot filling and the
// wording of answers.
type Tables struct {
	// LabelSets maps a label set name ("intent", "feedback", ...) to its
	// labels. The last label of a set is its catch-all default.
	LabelSets map[string]LabelSetTable `yaml:"label_sets" json:"label_sets"`

	// Slots maps a calculator category to its slot schema.
	Slots map[string]SlotTable `yaml:"slots" json:"slots"`

	// Categories maps the product category used in the catalog
	// ("정기예금") to a calculator category ("fixed_deposit").
	Categories map[string]string `yaml:"categories" json:"categories"`

	// Prompts overrides prompt templates by key.
	Prompts map[string]string `yaml:"prompts" json:"prompts"`
}

// LabelSetTable is the ordered label list of one label set.
type LabelSetTable struct {
	Labels []LabelTable `yaml:"labels" json:"labels"`
}

// LabelTable describes one label.
type LabelTable struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Synonyms    []string `yaml:"synonyms" json:"synonyms"`
}

// SlotTable is the slot schema of one calculator category.
type SlotTable struct {
	Fields []FieldTable `yaml:"fields" json:"fields"`
	Rank   []RankTable  `yaml:"rank" json:"rank"`
}

// FieldTable describes one slot.
type FieldTable struct {
	Name        string `yaml:"name" json:"name"`
	Kind        string `yaml:"kind" json:"kind"`
	Optional    bool   `yaml:"optional" json:"optional"`
	Description string `yaml:"description" json:"description"`
}

// RankTable is one step of the rule that picks a single option out of a
// product's option list.
type RankTable struct {
	Field string `yaml:"field" json:"field"`
	Order string `yaml:"order" json:"order"`
}

// LoadTables reads a tables file, auto-detecting the format by extension,
// and overlays it on DefaultTables. An empty path returns the defaults.
// Supported extensions: .yaml, .yml, .json
func LoadTables(path string) (Tables, error) {
	if path == "" {
		return DefaultTables(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Tables{}, fmt.Errorf("read tables file: %w", err)
	}

	var overlay Tables
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		overlay, err = TablesFromYAML(data)
	case ".json":
		overlay, err = TablesFromJSON(data)
	default:
		return Tables{}, fmt.Errorf("unsupported tables file extension: %s", ext)
	}
	if err != nil {
		return Tables{}, err
	}

	return DefaultTables().Overlay(overlay), nil
}

// TablesFromYAML parses YAML data into Tables without applying defaults.
func TablesFromYAML(data []byte) (Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Tables{}, fmt.Errorf("parse yaml: %w", err)
	}
	return t, nil
}

// TablesFromJSON parses JSON data into Tables without applying defaults.
func TablesFromJSON(data []byte) (Tables, error) {
	var t Tables
	if err := json.Unmarshal(data, &t); err != nil {
		return Tables{}, fmt.Errorf("parse json: %w", err)
	}
	return t, nil
}

// Overlay returns a copy of t with every entry of o replacing the entry of
// the same key.
func (t Tables) Overlay(o Tables) Tables {
	return Tables{
		LabelSets:  overlayMap(t.LabelSets, o.LabelSets),
		Slots:      overlayMap(t.Slots, o.Slots),
		Categories: overlayMap(t.Categories, o.Categories),
		Prompts:    overlayMap(t.Prompts, o.Prompts),
	}
}

func overlayMap[V any](base, top map[string]V) map[string]V {
	out := make(map[string]V, len(base)+len(top))
	maps.Copy(out, base)
	maps.Copy(out, top)
	return out
}
