package site

import (
	"encoding/json"
	"strings"
)

// Meta is the per-page head data: title, description, canonical URL,
// OpenGraph image and the LocalBusiness JSON-LD document.
type Meta struct {
	Title       string
	Description string
	URL         string
	Image       string
	NoIndex     bool
	JSONLD      string
}

// PageMeta describes a page for SEO.
type PageMeta struct {
	Title       string
	Description string
	Path        string
	Image       string
	NoIndex     bool
}

// Head builds the head data for p. An empty title or description falls back
// to the site defaults.
func (c *Content) Head(p PageMeta) Meta {
	siteURL := strings.TrimRight(c.SEO.SiteURL, "/")

	title := c.SEO.DefaultTitle
	if p.Title != "" {
		title = p.Title + " | " + c.Company.Name
	}
	desc := p.Description
	if desc == "" {
		desc = c.SEO.DefaultDescription
	}
	image := p.Image
	if image == "" {
		image = c.SEO.DefaultImage
	}
	if !strings.HasPrefix(image, "http") {
		image = siteURL + image
	}

	schema := map[string]any{
		"@context":    "https://schema.org",
		"@type":       "LocalBusiness",
		"name":        c.Company.Name,
		"description": desc,
		"url":         siteURL,
		"telephone":   c.Company.Contact.PhoneRaw,
		"email":       c.Company.Contact.Email,
		"founder": map[string]string{
			"@type": "Person",
			"name":  c.Company.Owner,
		},
		"areaServed": "Deutschland",
		"priceRange": "€€",
	}
	if p.Image != "" {
		schema["image"] = image
	}
	ld, _ := json.Marshal(schema)

	return Meta{
		Title:       title,
		Description: desc,
		URL:         siteURL + p.Path,
		Image:       image,
		NoIndex:     p.NoIndex,
		JSONLD:      string(ld),
	}
}
