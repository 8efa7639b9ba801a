package cfg

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

const sampleProfile = `queries:
  - golang concurrency
  - golang generics
search:
  country: de
fetch:
  max_pages: 10
output:
  sort_by: frequency
  min_frequency: 2
  cross_query: true
`

func writeProfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadProfile(t *testing.T) {
	p, err := LoadProfile(writeProfile(t, sampleProfile))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reflect.DeepEqual(p.Queries, []string{"golang concurrency", "golang generics"}) {
		t.Errorf("queries: got %v", p.Queries)
	}
	if p.Search.Country != "de" {
		t.Errorf("country: got %q", p.Search.Country)
	}
	if p.Fetch.MaxPages != 10 {
		t.Errorf("max pages: got %d", p.Fetch.MaxPages)
	}
	if p.Output.SortBy != "frequency" || !p.Output.CrossQuery {
		t.Errorf("output: got %+v", p.Output)
	}
}

func TestLoadProfile_Missing(t *testing.T) {
	if _, err := LoadProfile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestLoadProfile_Invalid(t *testing.T) {
	if _, err := LoadProfile(writeProfile(t, "queries: [unclosed")); err == nil {
		t.Error("expected a parse error")
	}
}

func TestApplyProfile(t *testing.T) {
	c := &Cfg{
		Country:     "us",
		Language:    "en",
		MaxPages:    25,
		Concurrency: 50,
		SortBy:      "best_position",
		Format:      "json",
		Queries:     []string{"from flags"},
	}

	p, err := LoadProfile(writeProfile(t, sampleProfile))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.ApplyProfile(p)

	// Profile queries append to the flag-supplied ones.
	want := []string{"from flags", "golang concurrency", "golang generics"}
	if !reflect.DeepEqual(c.Queries, want) {
		t.Errorf("queries: got %v, want %v", c.Queries, want)
	}

	if c.Country != "de" {
		t.Errorf("country: got %q, want override", c.Country)
	}
	if c.MaxPages != 10 || c.SortBy != "frequency" || c.MinFrequency != 2 || !c.CrossQuery {
		t.Errorf("overrides: got %+v", c)
	}

	// Values the profile leaves unset keep their flag/env defaults.
	if c.Language != "en" || c.Concurrency != 50 || c.Format != "json" {
		t.Errorf("defaults clobbered: language %q, concurrency %d, format %q",
			c.Language, c.Concurrency, c.Format)
	}
}
