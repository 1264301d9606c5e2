// Package seed parses the YAML document that bootstraps a fresh installation:
// the catalog, FAQs and initial site content.
package seed

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultDocument []byte

type Service struct {
	Title       string   `yaml:"title"`
	Slug        string   `yaml:"slug"`
	Summary     string   `yaml:"summary"`
	Description string   `yaml:"description"`
	Type        string   `yaml:"type"`
	PriceFrom   int64    `yaml:"price_from"`
	PriceLabel  string   `yaml:"price_label"`
	Features    []string `yaml:"features"`
}

type Pillar struct {
	Name        string    `yaml:"name"`
	Slug        string    `yaml:"slug"`
	Description string    `yaml:"description"`
	Icon        string    `yaml:"icon"`
	Services    []Service `yaml:"services"`
}

type Faq struct {
	Question string `yaml:"question"`
	Answer   string `yaml:"answer"`
	// Pillar is a pillar slug; empty means global.
	Pillar string `yaml:"pillar"`
}

// Document is the whole seed file. Content maps a section key to an
// arbitrary document that is stored as JSON.
type Document struct {
	Pillars []Pillar       `yaml:"pillars"`
	Faqs    []Faq          `yaml:"faqs"`
	Content map[string]any `yaml:"content"`
}

// Parse decodes a seed document and checks its cross references.
func Parse(r io.Reader) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("seed: parse yaml: %w", err)
	}
	if err := doc.validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Default returns the document compiled into the binary.
func Default() (*Document, error) {
	f, err := parseBytes(defaultDocument)
	if err != nil {
		return nil, fmt.Errorf("seed: embedded default: %w", err)
	}
	return f, nil
}

// LoadFile parses path, or the embedded default when path is empty.
func LoadFile(path string) (*Document, error) {
	if path == "" {
		return Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

func parseBytes(b []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("seed: parse yaml: %w", err)
	}
	if err := doc.validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ContentJSON returns the content section as JSON.
func (d *Document) ContentJSON(key string) (json.RawMessage, bool, error) {
	v, ok := d.Content[key]
	if !ok {
		return nil, false, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, true, fmt.Errorf("seed: content %q is not JSON compatible: %w", key, err)
	}
	return raw, true, nil
}

func (d *Document) validate() error {
	slugs := make(map[string]bool, len(d.Pillars))
	for _, p := range d.Pillars {
		if p.Name == "" {
			return fmt.Errorf("seed: pillar without name")
		}
		if p.Slug != "" {
			if slugs[p.Slug] {
				return fmt.Errorf("seed: duplicate pillar slug %q", p.Slug)
			}
			slugs[p.Slug] = true
		}
		for _, s := range p.Services {
			if s.Title == "" {
				return fmt.Errorf("seed: service without title in pillar %q", p.Name)
			}
		}
	}
	for _, f := range d.Faqs {
		if f.Question == "" || f.Answer == "" {
			return fmt.Errorf("seed: faq needs question and answer")
		}
		if f.Pillar != "" && !slugs[f.Pillar] {
			return fmt.Errorf("seed: faq %q references unknown pillar %q", f.Question, f.Pillar)
		}
	}
	return nil
}
