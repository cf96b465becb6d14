package suggest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reup-suggest-backend/internal/tasks"
)

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	require.NotEmpty(t, c.Templates)
	for _, tpl := range c.Templates {
		assert.NotEmpty(t, tpl.ID)
		assert.NotEmpty(t, tpl.Title)
		assert.Greater(t, tpl.Weight, 0.0)
		assert.LessOrEqual(t, tpl.Weight, 1.0)
	}
}

func TestParseCatalog(t *testing.T) {
	c, err := ParseCatalog([]byte(`
templates:
  - id: " a "
    title: " First "
  - id: b
    title: Second
    priority: high
    weight: 4
`))
	require.NoError(t, err)
	require.Len(t, c.Templates, 2)

	assert.Equal(t, "a", c.Templates[0].ID)
	assert.Equal(t, "First", c.Templates[0].Title)
	assert.Equal(t, defaultTemplateWeight, c.Templates[0].Weight)
	assert.Equal(t, tasks.PriorityHigh, c.Templates[1].Priority)
	assert.Equal(t, 1.0, c.Templates[1].Weight)
}

func TestParseCatalog_Errors(t *testing.T) {
	tests := map[string]string{
		"not yaml":      "templates: [",
		"missing title": "templates: [{id: a}]",
		"duplicate id":  "templates: [{id: a, title: x}, {id: a, title: y}]",
		"bad priority":  "templates: [{id: a, title: x, priority: asap}]",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadCatalog(t *testing.T) {
	c, err := LoadCatalog("")
	require.NoError(t, err)
	assert.Equal(t, DefaultCatalog().Templates, c.Templates)

	path := filepath.Join(t.TempDir(), "templates.yaml")
	require.NoError(t, os.WriteFile(path, []byte("templates: [{id: x, title: Stretch}]"), 0o644))
	c, err = LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, c.Templates, 1)
	assert.Equal(t, "Stretch", c.Templates[0].Title)

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
