// Package styles holds the fixed background style catalogue and the English
// provider prompt each style maps to.
package styles

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalogue.yaml
var defaultCatalogue []byte

// Style is one selectable background theme.
type Style struct {
	ID     string `yaml:"id" json:"id"`
	Prompt string `yaml:"prompt" json:"-"`
}

type document struct {
	BasePrompt string  `yaml:"base_prompt"`
	Styles     []Style `yaml:"styles"`
}

// Catalogue is immutable after construction.
type Catalogue struct {
	base  string
	order []string
	byID  map[string]Style
}

// Default returns the embedded catalogue.
func Default() *Catalogue {
	c, err := Parse(defaultCatalogue)
	if err != nil {
		panic(fmt.Sprintf("styles: embedded catalogue: %v", err))
	}
	return c
}

// Parse builds a catalogue from its YAML document.
func Parse(data []byte) (*Catalogue, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("styles: decode catalogue: %w", err)
	}
	if len(doc.Styles) == 0 {
		return nil, errors.New("styles: catalogue is empty")
	}
	c := &Catalogue{
		base: strings.TrimSpace(doc.BasePrompt),
		byID: make(map[string]Style, len(doc.Styles)),
	}
	for _, s := range doc.Styles {
		s.ID = strings.TrimSpace(s.ID)
		s.Prompt = strings.TrimSpace(s.Prompt)
		if s.ID == "" || s.Prompt == "" {
			return nil, fmt.Errorf("styles: entry %q needs both id and prompt", s.ID)
		}
		if _, dup := c.byID[s.ID]; dup {
			return nil, fmt.Errorf("styles: duplicate id %q", s.ID)
		}
		c.byID[s.ID] = s
		c.order = append(c.order, s.ID)
	}
	return c, nil
}

// Valid reports whether id names a catalogue entry.
func (c *Catalogue) Valid(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// IDs lists style identifiers in catalogue order.
func (c *Catalogue) IDs() []string {
	return append([]string(nil), c.order...)
}

// Prompt returns the full provider prompt for id: the base prompt followed by
// the style prompt.
func (c *Catalogue) Prompt(id string) (string, bool) {
	s, ok := c.byID[id]
	if !ok {
		return "", false
	}
	if c.base == "" {
		return s.Prompt, true
	}
	return c.base + ", " + s.Prompt, true
}
