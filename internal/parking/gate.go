package parking

import (
	"context"
	"sync/atomic"

	"parkvision-backend/internal/model"
	"parkvision-backend/internal/parse"
)

// AllowList is the persistence the gate needs.
type AllowList interface {
	IsAllowed(ctx context.Context, plate string) (bool, error)
	AddAllowed(ctx context.Context, plate string) (bool, error)
	RemoveAllowed(ctx context.Context, plate string) (bool, error)
	ListAllowed(ctx context.Context) ([]model.AllowedPlate, error)
}

// Gate decides admission at entry. Every plate is normalized before it is
// compared or stored.
type Gate struct {
	list    AllowList
	enabled atomic.Bool
}

// NewGate returns a gate backed by list, enforcing it when enabled is true.
func NewGate(list AllowList, enabled bool) *Gate {
	g := &Gate{list: list}
	g.enabled.Store(enabled)
	return g
}

// Enabled reports whether the allow-list is enforced.
func (g *Gate) Enabled() bool {
	return g.enabled.Load()
}

// SetEnabled turns enforcement on or off at runtime.
func (g *Gate) SetEnabled(on bool) {
	g.enabled.Store(on)
}

// IsAllowed reports allow-list membership regardless of the toggle.
func (g *Gate) IsAllowed(ctx context.Context, plate string) (bool, error) {
	return g.list.IsAllowed(ctx, parse.Plate(plate))
}

// Admit reports whether a vehicle with plate may enter.
func (g *Gate) Admit(ctx context.Context, plate string) (bool, error) {
	if !g.Enabled() {
		return true, nil
	}
	return g.IsAllowed(ctx, plate)
}

// Add allow-lists plate and reports whether it was newly added.
func (g *Gate) Add(ctx context.Context, plate string) (bool, error) {
	return g.list.AddAllowed(ctx, parse.Plate(plate))
}

// Remove drops plate and reports whether it was present.
func (g *Gate) Remove(ctx context.Context, plate string) (bool, error) {
	return g.list.RemoveAllowed(ctx, parse.Plate(plate))
}

// List returns every allowed plate.
func (g *Gate) List(ctx context.Context) ([]model.AllowedPlate, error) {
	return g.list.ListAllowed(ctx)
}
