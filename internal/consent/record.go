package consent

import "time"

const (
	// DefaultKey is the storage key the consent record lives under.
	DefaultKey = "ty_cookie_consent"
	// DefaultVersion identifies the current consent ruleset. Bump it to re-prompt every visitor.
	DefaultVersion = "1.0"
	// DefaultExpiryMonths is how long a recorded choice stays valid.
	DefaultExpiryMonths = 13
)

// Record is the persisted consent decision. Every write replaces it whole.
type Record struct {
	Version    string     `json:"version"`
	Date       *time.Time `json:"date"`
	Categories Categories `json:"categories"`
}

// Has reports whether the record grants c. Essential is always granted.
func (r Record) Has(c Category) bool {
	if c == Essential {
		return true
	}
	return r.Categories.Get(c)
}

// ExpiresAt returns the instant after which the record is no longer valid.
// The zero time is returned for records without a date.
func (r Record) ExpiresAt(months int) time.Time {
	if r.Date == nil {
		return time.Time{}
	}
	return r.Date.AddDate(0, months, 0)
}

// Details is a display view of a Record.
type Details struct {
	Record
	FormattedDate      string     `json:"formattedDate"`
	AcceptedCategories []Category `json:"-"`
	Accepted           []string   `json:"acceptedCategories"`
}
