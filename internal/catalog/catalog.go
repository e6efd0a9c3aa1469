package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"adresse/internal/domain"
)

// NameProperty is the text attribute holding the canonical commune name.
const NameProperty = "name"

//go:embed data/communes.yaml
var communesYAML []byte

//go:embed data/prompt.yaml
var promptYAML []byte

// Catalog is the ordered list of canonical commune names.
type Catalog struct {
	Version  int      `yaml:"version"`
	Communes []string `yaml:"communes"`
}

// PromptData holds the worked examples and alias hints shown to the model.
type PromptData struct {
	Version  int              `yaml:"version"`
	Aliases  []domain.Alias   `yaml:"aliases"`
	Examples []domain.Example `yaml:"examples"`
}

// Default returns the embedded commune catalog.
func Default() (*Catalog, error) {
	return parse(communesYAML)
}

// Load reads a catalog from path. An empty path yields the embedded catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return parse(data)
}

func parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	seen := make(map[string]struct{}, len(c.Communes))
	names := c.Communes[:0]
	for _, n := range c.Communes {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		names = append(names, n)
	}
	if len(names) == 0 {
		return nil, errors.New("catalog has no communes")
	}
	c.Communes = names
	return &c, nil
}

// Contains reports whether name is a canonical entry.
func (c *Catalog) Contains(name string) bool {
	for _, n := range c.Communes {
		if n == name {
			return true
		}
	}
	return false
}

// Records converts the catalog into store records, one per commune.
func (c *Catalog) Records() []domain.Record {
	out := make([]domain.Record, len(c.Communes))
	for i, n := range c.Communes {
		out[i] = domain.Record{Properties: map[string]string{NameProperty: n}}
	}
	return out
}

// DefaultPrompt returns the embedded examples and aliases.
func DefaultPrompt() (*PromptData, error) {
	var p PromptData
	if err := yaml.Unmarshal(promptYAML, &p); err != nil {
		return nil, fmt.Errorf("decode prompt data: %w", err)
	}
	return &p, nil
}
