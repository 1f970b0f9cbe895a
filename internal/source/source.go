package source

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

const (
	GroupBicycle   = "bicycle"
	GroupReference = "reference"

	Paris    = "paris"
	Nantes   = "nantes"
	Toulouse = "toulouse"
	Communes = "communes"
)

var (
	ErrNoSources     = errors.New("at least one source is required")
	ErrUnknownSource = errors.New("unknown source")
)

type Source struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	FileName string `yaml:"file_name"`
	Group    string `yaml:"group"`
}

func (s Source) IsBicycle() bool {
	return s.Group == GroupBicycle
}

// DefaultFileName derives the output file name from the source name and group.
func DefaultFileName(name string, group string) string {
	if group == GroupBicycle {
		return name + "_realtime_bicycle_data.json"
	}
	if name == Communes {
		return "commune_data.json"
	}

	return name + "_data.json"
}

func newSource(name string, url string, group string) Source {
	return Source{
		Name:     name,
		URL:      url,
		FileName: DefaultFileName(name, group),
		Group:    group,
	}
}

type Catalog struct {
	sources []Source
}

func NewCatalog(sources []Source) (*Catalog, error) {
	if len(sources) == 0 {
		return nil, ErrNoSources
	}

	seen := map[string]bool{}
	normalized := make([]Source, 0, len(sources))
	for i, s := range sources {
		s.Name = strings.TrimSpace(s.Name)
		if s.Name == "" {
			return nil, fmt.Errorf("source #%d: name is required", i)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("source %s: duplicated name", s.Name)
		}
		if s.URL == "" {
			return nil, fmt.Errorf("source %s: url is required", s.Name)
		}
		if s.Group == "" {
			s.Group = GroupBicycle
		}
		if s.FileName == "" {
			s.FileName = DefaultFileName(s.Name, s.Group)
		}

		seen[s.Name] = true
		normalized = append(normalized, s)
	}

	return &Catalog{sources: normalized}, nil
}

func DefaultCatalog() *Catalog {
	return &Catalog{
		sources: []Source{
			newSource(Paris, "https://opendata.paris.fr/api/explore/v2.1/catalog/datasets/velib-disponibilite-en-temps-reel/exports/json", GroupBicycle),
			newSource(Nantes, "https://data.nantesmetropole.fr/api/explore/v2.1/catalog/datasets/244400404_stations-velos-libre-service-nantes-metropole-disponibilites/exports/json", GroupBicycle),
			newSource(Toulouse, "https://data.toulouse-metropole.fr/api/explore/v2.1/catalog/datasets/api-velo-toulouse-temps-reel/exports/json?lang=fr&timezone=Europe%2FParis", GroupBicycle),
			newSource(Communes, "https://geo.api.gouv.fr/communes", GroupReference),
		},
	}
}

type catalogFile struct {
	Sources []Source `yaml:"sources"`
}

// LoadCatalog reads a YAML catalog replacing the built-in one.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}

	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse sources file: %w", err)
	}

	return NewCatalog(file.Sources)
}

func (c *Catalog) All() []Source {
	return append([]Source{}, c.sources...)
}

func (c *Catalog) Bicycles() []Source {
	return lo.Filter(c.sources, func(s Source, _ int) bool {
		return s.IsBicycle()
	})
}

func (c *Catalog) Names() []string {
	return lo.Map(c.sources, func(s Source, _ int) string {
		return s.Name
	})
}

func (c *Catalog) Lookup(name string) (Source, error) {
	s, ok := lo.Find(c.sources, func(s Source) bool {
		return s.Name == name
	})
	if !ok {
		return Source{}, fmt.Errorf("%w: %s (known sources: %s)", ErrUnknownSource, name, strings.Join(c.Names(), ", "))
	}

	return s, nil
}
