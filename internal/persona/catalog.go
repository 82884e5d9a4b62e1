package persona

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed personas.yaml
var defaultCatalog []byte

// Persona is one selectable companion.
type Persona struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	// HeyGen streaming avatar id
	AvatarID string `yaml:"avatar_id" json:"avatarId,omitempty"`
	// D-ID source image
	SourceURL string `yaml:"source_url" json:"image,omitempty"`
	Color     string `yaml:"color" json:"color,omitempty"`
	// Preferred OpenAI voice; empty means pick from the sliders
	Voice string `yaml:"voice" json:"voice,omitempty"`
	// Suggested starting sliders
	Preferences *Preferences `yaml:"preferences" json:"preferences,omitempty"`
}

type catalogFile struct {
	Personas []Persona `yaml:"personas"`
}

type Catalog struct {
	personas []Persona
	byID     map[string]Persona
}

// LoadCatalog reads a YAML catalog from path, or the embedded one when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	b := defaultCatalog
	if strings.TrimSpace(path) != "" {
		var err error
		b, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read persona catalog: %w", err)
		}
	}
	return ParseCatalog(b)
}

func ParseCatalog(b []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse persona catalog: %w", err)
	}
	c := &Catalog{byID: make(map[string]Persona, len(f.Personas))}
	for i, p := range f.Personas {
		p.ID = strings.TrimSpace(p.ID)
		if p.ID == "" || strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("persona %d: id and name are required", i)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("persona %q defined twice", p.ID)
		}
		if p.Preferences != nil {
			if err := p.Preferences.Validate(); err != nil {
				return nil, fmt.Errorf("persona %q: %w", p.ID, err)
			}
		}
		c.personas = append(c.personas, p)
		c.byID[p.ID] = p
	}
	return c, nil
}

func (c *Catalog) Lookup(id string) (Persona, bool) {
	p, ok := c.byID[strings.TrimSpace(id)]
	return p, ok
}

// List returns the personas in file order.
func (c *Catalog) List() []Persona {
	return append([]Persona(nil), c.personas...)
}
