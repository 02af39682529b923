// Package consent manages a visitor's cookie and tracking consent: what is
// stored, when it stops being valid, and who is told when it changes.
package consent

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/kalambet/tysite/internal/kv"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// Store is the single source of truth for one storage scope's consent.
// Construct one per kv.Store; stores that share a Bus notify the same observers.
type Store struct {
	kv           kv.Store
	bus          *Bus
	clock        Clock
	logger       *slog.Logger
	scope        string
	key          string
	version      string
	expiryMonths int
	location     *time.Location
}

// Option configures a Store.
type Option func(*Store)

// WithBus shares a Bus between stores. Without it each Store owns a private Bus.
func WithBus(b *Bus) Option { return func(s *Store) { s.bus = b } }

func WithClock(c Clock) Option { return func(s *Store) { s.clock = c } }

func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.logger = l } }

// WithScope tags published events, e.g. with the visitor id.
func WithScope(scope string) Option { return func(s *Store) { s.scope = scope } }

func WithKey(key string) Option { return func(s *Store) { s.key = key } }

// WithVersion sets the ruleset version; stored records with another version are ignored.
func WithVersion(v string) Option { return func(s *Store) { s.version = v } }

func WithExpiryMonths(m int) Option { return func(s *Store) { s.expiryMonths = m } }

// WithLocation sets the time zone used for Details.FormattedDate.
func WithLocation(loc *time.Location) Option { return func(s *Store) { s.location = loc } }

// NewStore creates a Store persisting into store.
func NewStore(store kv.Store, opts ...Option) *Store {
	s := &Store{
		kv:           store,
		clock:        realClock{},
		logger:       slog.Default(),
		key:          DefaultKey,
		version:      DefaultVersion,
		expiryMonths: DefaultExpiryMonths,
		location:     time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.bus == nil {
		s.bus = &Bus{}
	}
	if s.expiryMonths <= 0 {
		s.expiryMonths = DefaultExpiryMonths
	}
	return s
}

// Bus returns the bus this Store publishes to.
func (s *Store) Bus() *Bus { return s.bus }

// Scope returns the scope events are tagged with.
func (s *Store) Scope() string { return s.scope }

// Subscribe is shorthand for s.Bus().Subscribe.
func (s *Store) Subscribe(fn Observer) (unsubscribe func()) {
	return s.bus.Subscribe(fn)
}

// Get returns the stored record if it exists, matches the current version,
// and has not expired. Read failures are logged and reported as absent.
func (s *Store) Get() (Record, bool) {
	raw, ok, err := s.kv.Get(s.key)
	if err != nil {
		s.logger.Warn("consent storage unavailable, treating as no consent", "scope", s.scope, "error", err)
		return Record{}, false
	}
	if !ok || raw == "" {
		return Record{}, false
	}

	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		s.logger.Error("malformed consent record, ignoring", "scope", s.scope, "error", err)
		return Record{}, false
	}

	if rec.Version != s.version {
		s.logger.Debug("consent version changed, re-consent required", "scope", s.scope, "stored", rec.Version, "current", s.version)
		return Record{}, false
	}
	if rec.Date == nil {
		return Record{}, false
	}
	if s.clock.Now().After(rec.ExpiresAt(s.expiryMonths)) {
		s.logger.Debug("consent expired", "scope", s.scope, "date", rec.Date)
		return Record{}, false
	}

	rec.Categories.Essential = true
	return rec, true
}

// Set persists a new record built from the essential-only defaults overlaid
// with partial, with essential forced on, and publishes it before returning.
// It returns false without publishing when the record cannot be stored.
func (s *Store) Set(partial map[Category]bool) bool {
	cats := DefaultCategories()
	for c, v := range partial {
		cats = cats.With(c, v)
	}
	return s.SetCategories(cats)
}

// SetCategories is Set with a full category set.
func (s *Store) SetCategories(cats Categories) bool {
	if !kv.Available(s.kv) {
		s.logger.Warn("consent storage unavailable, consent cannot be saved", "scope", s.scope)
		return false
	}

	cats.Essential = true
	now := s.clock.Now().UTC().Truncate(time.Millisecond)
	rec := Record{
		Version:    s.version,
		Date:       &now,
		Categories: cats,
	}

	data, err := json.Marshal(rec)
	if err != nil {
		s.logger.Error("encoding consent record", "scope", s.scope, "error", err)
		return false
	}
	if err := s.kv.Set(s.key, string(data)); err != nil {
		level := slog.LevelError
		if errors.Is(err, kv.ErrQuotaExceeded) || errors.Is(err, kv.ErrUnavailable) {
			level = slog.LevelWarn
		}
		s.logger.Log(context.Background(), level, "saving consent record", "scope", s.scope, "error", err)
		return false
	}

	s.bus.Publish(Event{Scope: s.scope, Record: rec})
	return true
}

// Has reports whether c is authorized. Essential always is; any other
// category requires a valid stored record granting it.
func (s *Store) Has(c Category) bool {
	if c == Essential {
		return true
	}
	rec, ok := s.Get()
	if !ok {
		return false
	}
	return rec.Categories.Get(c)
}

// AcceptAll grants every category.
func (s *Store) AcceptAll() bool {
	return s.SetCategories(Categories{Essential: true, Preferences: true, Statistics: true, Marketing: true})
}

// AcceptEssentialOnly grants essential and declines the rest.
func (s *Store) AcceptEssentialOnly() bool {
	return s.SetCategories(DefaultCategories())
}

// Clear removes the stored record. It does not publish; use Reset to
// re-prompt observers.
func (s *Store) Clear() {
	if err := s.kv.Remove(s.key); err != nil {
		s.logger.Warn("clearing consent record", "scope", s.scope, "error", err)
	}
}

// Reset clears the record and publishes a cleared event so observers such
// as the banner prompt again.
func (s *Store) Reset() {
	s.Clear()
	s.bus.Publish(Event{Scope: s.scope, Cleared: true})
}

// HasMadeChoice reports whether a valid record exists.
func (s *Store) HasMadeChoice() bool {
	_, ok := s.Get()
	return ok
}

// Details returns the current record with a German-formatted date and the
// list of accepted categories.
func (s *Store) Details() (Details, bool) {
	rec, ok := s.Get()
	if !ok {
		return Details{}, false
	}
	d := Details{Record: rec, AcceptedCategories: rec.Categories.Accepted()}
	if rec.Date != nil {
		d.FormattedDate = rec.Date.In(s.location).Format("02.01.2006")
	}
	for _, c := range d.AcceptedCategories {
		d.Accepted = append(d.Accepted, c.String())
	}
	return d, true
}
