package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ModelRoutes maps agent type keywords to execution models, so a deployment
// can pin, say, research agents to one model and synthesis agents to another
// without touching the planner.
type ModelRoutes struct {
	// Routes maps a lowercase keyword to a model identifier. An agent type
	// containing the keyword (case-insensitive) uses that model.
	Routes map[string]string `yaml:"routes"`
	// Default is used when no keyword matches. Empty defers to the
	// client-level default model.
	Default string `yaml:"default"`
}

// LoadRoutes reads a model routes file. A missing path returns empty routes
// rather than an error, since the file is optional.
func LoadRoutes(path string) (*ModelRoutes, error) {
	if path == "" {
		return &ModelRoutes{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ModelRoutes{}, nil
		}
		return nil, fmt.Errorf("reading model routes from %s: %w", path, err)
	}

	routes := &ModelRoutes{}
	if err := yaml.Unmarshal(data, routes); err != nil {
		return nil, fmt.Errorf("unmarshaling model routes from %s: %w", path, err)
	}

	return routes, nil
}

// Resolve picks the model for an agent type. Keywords are matched as
// case-insensitive substrings; ties break alphabetically for determinism.
func (r *ModelRoutes) Resolve(agentType string) string {
	if r == nil || len(r.Routes) == 0 {
		return r.defaultModel()
	}

	needle := strings.ToLower(agentType)

	keywords := make([]string, 0, len(r.Routes))
	for k := range r.Routes {
		keywords = append(keywords, k)
	}
	sort.Strings(keywords)

	for _, keyword := range keywords {
		if strings.Contains(needle, strings.ToLower(keyword)) {
			return r.Routes[keyword]
		}
	}

	return r.defaultModel()
}

func (r *ModelRoutes) defaultModel() string {
	if r == nil {
		return ""
	}
	return r.Default
}
