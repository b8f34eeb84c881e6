package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/pinwater/pinwatch/internal/core/domain"
)

// Catalog is the static list of records a registry is seeded from.
type Catalog struct {
	Sources   []CatalogSource          `yaml:"sources"`
	WQPStates map[string]CatalogState `yaml:"wqp_states"`
}

// CatalogSource describes one source.
type CatalogSource struct {
	ID       string   `yaml:"id"`
	Type     string   `yaml:"type"`
	Name     string   `yaml:"name"`
	URL      string   `yaml:"url"`
	ProbeURL string   `yaml:"probe_url"`
	Priority int      `yaml:"priority"`
	AltURLs  []string `yaml:"alt_urls"`
	Gated    bool     `yaml:"gated"`
}

// CatalogState describes one jurisdiction.
type CatalogState struct {
	FIPS     string `yaml:"fips"`
	Name     string `yaml:"name"`
	Priority int    `yaml:"priority"`
}

// LoadCatalog reads a catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return &c, nil
}

// Registry builds a fresh registry from the catalog. Records start live,
// or gated when marked so, with no health history.
func (c *Catalog) Registry() (*domain.Registry, error) {
	reg := domain.NewRegistry()
	seen := make(map[string]bool, len(c.Sources))

	for i, cs := range c.Sources {
		if cs.ID == "" || cs.URL == "" {
			return nil, fmt.Errorf("catalog source #%d: id and url are required", i)
		}
		if seen[cs.ID] {
			return nil, fmt.Errorf("catalog source %q defined twice", cs.ID)
		}
		seen[cs.ID] = true

		typ := domain.SourceType(cs.Type)
		if typ == "" {
			typ = domain.SourceTypeFederal
		}
		if !typ.Valid() {
			return nil, fmt.Errorf("catalog source %q: unknown type %q", cs.ID, cs.Type)
		}

		status := domain.StatusLive
		if cs.Gated {
			status = domain.StatusGated
		}
		reg.Sources = append(reg.Sources, &domain.Source{
			ID:       cs.ID,
			Type:     typ,
			Name:     cs.Name,
			URL:      cs.URL,
			ProbeURL: cs.ProbeURL,
			Priority: cs.Priority,
			AltURLs:  cs.AltURLs,
			Health:   domain.Health{Status: status},
		})
	}

	for abbr, cs := range c.WQPStates {
		if cs.FIPS == "" {
			return nil, fmt.Errorf("catalog jurisdiction %s: fips is required", abbr)
		}
		key := strings.ToUpper(abbr)
		if _, dup := reg.WQPStates[key]; dup {
			return nil, fmt.Errorf("catalog jurisdiction %s defined twice", key)
		}
		reg.WQPStates[key] = &domain.WQPState{
			FIPS:     cs.FIPS,
			Name:     cs.Name,
			Priority: cs.Priority,
			Health:   domain.Health{Status: domain.StatusLive},
		}
	}
	return reg, nil
}
