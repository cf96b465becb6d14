package suggest

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"reup-suggest-backend/internal/tasks"
)

//go:embed templates.yaml
var builtinTemplates []byte

const defaultTemplateWeight = 0.35

type Template struct {
	ID       string         `yaml:"id"`
	Title    string         `yaml:"title"`
	Category string         `yaml:"category"`
	Priority tasks.Priority `yaml:"priority"`
	Location string         `yaml:"location"`
	Weight   float64        `yaml:"weight"`
}

type Catalog struct {
	Templates []Template `yaml:"templates"`
}

// DefaultCatalog returns the catalog compiled into the binary.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(builtinTemplates)
	if err != nil {
		panic(fmt.Sprintf("builtin templates: %v", err))
	}
	return c
}

// LoadCatalog reads a YAML catalog from disk. An empty path yields the builtin one.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read templates: %w", err)
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	seen := make(map[string]struct{}, len(c.Templates))
	for i := range c.Templates {
		t := &c.Templates[i]
		t.ID = strings.TrimSpace(t.ID)
		t.Title = strings.TrimSpace(t.Title)
		if t.ID == "" || t.Title == "" {
			return nil, fmt.Errorf("template #%d: id and title are required", i)
		}
		if _, dup := seen[t.ID]; dup {
			return nil, fmt.Errorf("template %q: duplicate id", t.ID)
		}
		seen[t.ID] = struct{}{}

		if !t.Priority.Valid() {
			return nil, fmt.Errorf("template %q: invalid priority %q", t.ID, t.Priority)
		}
		if t.Weight == 0 {
			t.Weight = defaultTemplateWeight
		}
		t.Weight = clamp01(t.Weight)
	}
	return &c, nil
}
