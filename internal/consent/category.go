package consent

import "fmt"

// Category is one of the four fixed tracking purposes a visitor can authorize.
type Category int

const (
	Essential Category = iota
	Preferences
	Statistics
	Marketing
)

// AllCategories lists every category in display order.
var AllCategories = [...]Category{Essential, Preferences, Statistics, Marketing}

func (c Category) String() string {
	switch c {
	case Essential:
		return "essential"
	case Preferences:
		return "preferences"
	case Statistics:
		return "statistics"
	case Marketing:
		return "marketing"
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

// Label is the German name shown in the cookie settings dialog.
func (c Category) Label() string {
	switch c {
	case Essential:
		return "Essenziell"
	case Preferences:
		return "Präferenzen"
	case Statistics:
		return "Statistik"
	case Marketing:
		return "Marketing"
	}
	return c.String()
}

// ParseCategory maps a category name to its Category.
func ParseCategory(s string) (Category, error) {
	for _, c := range AllCategories {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown consent category %q", s)
}

// Categories holds one flag per category. Keys are always all four in JSON.
type Categories struct {
	Essential   bool `json:"essential"`
	Preferences bool `json:"preferences"`
	Statistics  bool `json:"statistics"`
	Marketing   bool `json:"marketing"`
}

// DefaultCategories grants essential only.
func DefaultCategories() Categories {
	return Categories{Essential: true}
}

// Get returns the flag for c.
func (cs Categories) Get(c Category) bool {
	switch c {
	case Essential:
		return cs.Essential
	case Preferences:
		return cs.Preferences
	case Statistics:
		return cs.Statistics
	case Marketing:
		return cs.Marketing
	}
	return false
}

// With returns a copy of cs with c set to v.
func (cs Categories) With(c Category, v bool) Categories {
	switch c {
	case Essential:
		cs.Essential = v
	case Preferences:
		cs.Preferences = v
	case Statistics:
		cs.Statistics = v
	case Marketing:
		cs.Marketing = v
	}
	return cs
}

// Accepted lists the granted categories in display order.
func (cs Categories) Accepted() []Category {
	var out []Category
	for _, c := range AllCategories {
		if cs.Get(c) {
			out = append(out, c)
		}
	}
	return out
}
