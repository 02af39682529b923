// Package analytics decides per visitor whether the statistics snippet may load.
package analytics

import (
	"log/slog"

	"github.com/kalambet/tysite/internal/consent"
)

// StoreFunc opens the consent store for a scope.
type StoreFunc func(scope string) *consent.Store

// Gate answers whether statistics may run for a scope. Every answer is read
// from the persisted record, so expiry and writes made by other processes
// take effect on the next request. The bus subscription only logs changes.
type Gate struct {
	open   StoreFunc
	logger *slog.Logger

	unsubscribe func()
}

// NewGate builds a gate over open and subscribes it to bus.
func NewGate(bus *consent.Bus, open StoreFunc, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gate{
		open:   open,
		logger: logger,
	}
	g.unsubscribe = bus.Subscribe(g.observe)
	return g
}

func (g *Gate) observe(e consent.Event) {
	on := !e.Cleared && g.Enabled(e.Scope)
	g.logger.Debug("analytics consent changed", "scope", e.Scope, "enabled", on)
}

// Enabled reports whether analytics may run for scope.
func (g *Gate) Enabled(scope string) bool {
	if g.open == nil {
		return false
	}
	return g.open(scope).Has(consent.Statistics)
}

// Close detaches the gate from the bus.
func (g *Gate) Close() {
	g.unsubscribe()
}
