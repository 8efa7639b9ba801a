package cfg

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile is a YAML run profile: a reusable bundle of queries and parameter
// overrides for a recurring search job.
type Profile struct {
	Queries []string `yaml:"queries"`

	Search struct {
		Country  string `yaml:"country"`
		Language string `yaml:"language"`
	} `yaml:"search"`

	Fetch struct {
		MaxPages    int `yaml:"max_pages"`
		Concurrency int `yaml:"concurrency"`
	} `yaml:"fetch"`

	Output struct {
		Format       string `yaml:"format"`
		SortBy       string `yaml:"sort_by"`
		Limit        int    `yaml:"limit"`
		MinFrequency int    `yaml:"min_frequency"`
		CrossQuery   bool   `yaml:"cross_query"`
	} `yaml:"output"`
}

// LoadProfile reads and parses a profile file.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}

	return &p, nil
}

// ApplyProfile overlays the profile's set values onto the configuration and
// appends its queries. Zero values in the profile leave the flag/env values
// untouched.
func (c *Cfg) ApplyProfile(p *Profile) {
	c.Queries = append(c.Queries, p.Queries...)

	if p.Search.Country != "" {
		c.Country = p.Search.Country
	}
	if p.Search.Language != "" {
		c.Language = p.Search.Language
	}
	if p.Fetch.MaxPages > 0 {
		c.MaxPages = p.Fetch.MaxPages
	}
	if p.Fetch.Concurrency > 0 {
		c.Concurrency = p.Fetch.Concurrency
	}
	if p.Output.Format != "" {
		c.Format = p.Output.Format
	}
	if p.Output.SortBy != "" {
		c.SortBy = p.Output.SortBy
	}
	if p.Output.Limit > 0 {
		c.Limit = p.Output.Limit
	}
	if p.Output.MinFrequency > 0 {
		c.MinFrequency = p.Output.MinFrequency
	}
	if p.Output.CrossQuery {
		c.CrossQuery = true
	}
}
