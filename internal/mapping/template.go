package mapping

import (
	"encoding/json"
	"fmt"
	"os"
)

// FixedTemplate is a pre-measured coordinate set for one exam's printed
// sheet. When layout detection fails on a poor scan, a registered template
// lets the caller skip straight to intensity analysis.
type FixedTemplate struct {
	Name      string           `json:"name"`
	Questions map[int]Question `json:"questions"`
}

// Validate checks that question numbers are positive and match their keys.
func (t *FixedTemplate) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("template has no name")
	}
	if len(t.Questions) == 0 {
		return fmt.Errorf("template %q has no questions", t.Name)
	}
	for num, q := range t.Questions {
		if num <= 0 || q.Number != num {
			return fmt.Errorf("template %q: question key %d does not match number %d", t.Name, num, q.Number)
		}
		if len(q.Options) < 2 {
			return fmt.Errorf("template %q: question %d has %d options, need at least 2", t.Name, num, len(q.Options))
		}
	}
	return nil
}

// SaveToFile writes the template as JSON.
func (t *FixedTemplate) SaveToFile(path string) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadTemplateFromFile reads a JSON template.
func LoadTemplateFromFile(path string) (*FixedTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var t FixedTemplate
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Registry of known fixed templates
var registry = make(map[string]*FixedTemplate)

// RegisterTemplate adds a template to the registry.
func RegisterTemplate(t *FixedTemplate) {
	registry[t.Name] = t
}

// GetTemplate returns a template by name.
func GetTemplate(name string) *FixedTemplate {
	if t, ok := registry[name]; ok {
		return t
	}
	return nil
}

// ListTemplates returns all registered template names.
func ListTemplates() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
