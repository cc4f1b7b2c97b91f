// Package outlets answers questions about coffee outlets: a static dataset
// for direct hours/address/phone lookups, and a sqlite database queried
// through a guarded text-to-SQL engine for open-ended searches.
package outlets

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data.yaml
var dataYAML []byte

// Info describes one outlet in the static dataset.
type Info struct {
	Name        string `yaml:"name" json:"name"`
	Location    string `yaml:"location" json:"location"`
	Area        string `yaml:"area" json:"area"`
	OpeningTime string `yaml:"opening_time" json:"opening_time"`
	ClosingTime string `yaml:"closing_time" json:"closing_time"`
	Phone       string `yaml:"phone,omitempty" json:"phone,omitempty"`
	Address     string `yaml:"address,omitempty" json:"address,omitempty"`
}

// Service serves lookups against the embedded outlet dataset.
type Service struct {
	areas map[string][]Info
}

// NewService loads the embedded dataset.
func NewService() (*Service, error) {
	var doc struct {
		Areas map[string][]Info `yaml:"areas"`
	}
	if err := yaml.Unmarshal(dataYAML, &doc); err != nil {
		return nil, fmt.Errorf("load outlet data: %w", err)
	}
	return &Service{areas: doc.Areas}, nil
}

// ByArea returns all outlets in an area. The key is normalized, so both
// "Petaling Jaya" and "petaling_jaya" resolve.
func (s *Service) ByArea(area string) []Info {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(area)), " ", "_")
	return s.areas[key]
}

// ByLocation finds the outlet whose location contains the given name,
// searching within an area when one is known, otherwise everywhere.
func (s *Service) ByLocation(area, location string) (Info, bool) {
	needle := strings.ToLower(strings.ReplaceAll(location, "_", " "))

	scan := func(outlets []Info) (Info, bool) {
		for _, o := range outlets {
			if strings.Contains(strings.ToLower(o.Location), needle) {
				return o, true
			}
		}
		return Info{}, false
	}

	if area != "" {
		return scan(s.ByArea(area))
	}
	for _, outlets := range s.areas {
		if o, ok := scan(outlets); ok {
			return o, true
		}
	}
	return Info{}, false
}

// Search returns outlets whose name, location or area contains the query.
func (s *Service) Search(query string) []Info {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	var results []Info
	for _, outlets := range s.areas {
		for _, o := range outlets {
			if strings.Contains(strings.ToLower(o.Name), q) ||
				strings.Contains(strings.ToLower(o.Location), q) ||
				strings.Contains(strings.ToLower(o.Area), q) {
				results = append(results, o)
			}
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return results
}

// All returns the full dataset keyed by area.
func (s *Service) All() map[string][]Info {
	out := make(map[string][]Info, len(s.areas))
	for key, outlets := range s.areas {
		cp := make([]Info, len(outlets))
		copy(cp, outlets)
		out[key] = cp
	}
	return out
}

// Areas lists known areas in display form, sorted.
func (s *Service) Areas() []string {
	out := make([]string, 0, len(s.areas))
	for key := range s.areas {
		out = append(out, titleCase(strings.ReplaceAll(key, "_", " ")))
	}
	sort.Strings(out)
	return out
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
