// Package site holds the static company content the pages render.
package site

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed content.yaml
var defaultContent []byte

type Company struct {
	Name        string   `yaml:"name"`
	Owner       string   `yaml:"owner"`
	LegalForm   string   `yaml:"legal_form"`
	Contact     Contact  `yaml:"contact"`
	Values      []Value  `yaml:"values"`
	TrustBadges []string `yaml:"trust_badges"`
}

type Contact struct {
	Phone    string  `yaml:"phone"`
	PhoneRaw string  `yaml:"phone_raw"` // for tel: links
	Email    string  `yaml:"email"`
	Hours    string  `yaml:"hours"`
	Address  Address `yaml:"address"`
}

type Address struct {
	Street string `yaml:"street"`
	Zip    string `yaml:"zip"`
	City   string `yaml:"city"`
}

type Value struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

type SEODefaults struct {
	DefaultTitle       string `yaml:"default_title"`
	DefaultDescription string `yaml:"default_description"`
	SiteURL            string `yaml:"site_url"`
	DefaultImage       string `yaml:"default_image"`
}

type Service struct {
	ID               int      `yaml:"id"`
	Slug             string   `yaml:"slug"`
	Title            string   `yaml:"title"`
	ShortDescription string   `yaml:"short_description"`
	FullDescription  string   `yaml:"full_description"`
	Image            string   `yaml:"image"`
	Features         []string `yaml:"features"`
	Benefits         []string `yaml:"benefits"`
}

type Reference struct {
	ID          int      `yaml:"id"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Category    string   `yaml:"category"`
	Location    string   `yaml:"location"`
	Year        string   `yaml:"year"`
	Images      []string `yaml:"images"`
	Featured    bool     `yaml:"featured"`
}

type ReferenceCategory struct {
	ID    string `yaml:"id"`
	Label string `yaml:"label"`
}

// AllCategoryID selects every reference.
const AllCategoryID = "all"

// Content is the full site data set.
type Content struct {
	Company             Company             `yaml:"company"`
	SEO                 SEODefaults         `yaml:"seo"`
	Services            []Service           `yaml:"services"`
	References          []Reference         `yaml:"references"`
	ReferenceCategories []ReferenceCategory `yaml:"reference_categories"`
}

// Default returns the content compiled into the binary.
func Default() (*Content, error) {
	return Parse(defaultContent)
}

// Load reads content from a YAML file. An empty path yields Default.
func Load(path string) (*Content, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading content file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and checks a content document.
func Parse(data []byte) (*Content, error) {
	var c Content
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing content: %w", err)
	}
	if c.Company.Name == "" {
		return nil, fmt.Errorf("parsing content: company.name is required")
	}
	seen := make(map[string]bool, len(c.Services))
	for _, s := range c.Services {
		if s.Slug == "" {
			return nil, fmt.Errorf("parsing content: service %d has no slug", s.ID)
		}
		if seen[s.Slug] {
			return nil, fmt.Errorf("parsing content: duplicate service slug %q", s.Slug)
		}
		seen[s.Slug] = true
	}
	return &c, nil
}

// ServiceBySlug returns the service with slug, or false.
func (c *Content) ServiceBySlug(slug string) (Service, bool) {
	for _, s := range c.Services {
		if s.Slug == slug {
			return s, true
		}
	}
	return Service{}, false
}

// ReferencesByCategory filters references; AllCategoryID or "" returns all of them.
func (c *Content) ReferencesByCategory(category string) []Reference {
	if category == "" || category == AllCategoryID {
		return c.References
	}
	var out []Reference
	for _, r := range c.References {
		if r.Category == category {
			out = append(out, r)
		}
	}
	return out
}

// ReferenceByID returns the reference with id, or false.
func (c *Content) ReferenceByID(id int) (Reference, bool) {
	for _, r := range c.References {
		if r.ID == id {
			return r, true
		}
	}
	return Reference{}, false
}

// FeaturedReferences returns references flagged for the home page.
func (c *Content) FeaturedReferences() []Reference {
	var out []Reference
	for _, r := range c.References {
		if r.Featured {
			out = append(out, r)
		}
	}
	return out
}

// HasReferenceCategory reports whether id is a known filter.
func (c *Content) HasReferenceCategory(id string) bool {
	for _, rc := range c.ReferenceCategories {
		if rc.ID == id {
			return true
		}
	}
	return false
}
