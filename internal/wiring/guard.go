// Package wiring keeps wire records consistent with slot occupancy.
// Wires reference slots, not devices, so removing a device leaves its
// wires pointing at free slots. The guard never deletes those wires; it
// flags them orphaned so a user can re-point or discard them later.
package wiring

import (
	"fmt"

	"go.uber.org/zap"
)

// WireFlagger is the slice of a mutation transaction the guard needs.
// Flagging happens inside the same transaction that frees the slots, so
// either both changes commit or neither does.
type WireFlagger interface {
	// FlagOrphanedWires marks every non-orphaned wire whose source or
	// destination is one of the given slots and returns their IDs.
	FlagOrphanedWires(slotIDs []string) ([]string, error)
}

// Guard watches device removals and flags the wires they strand.
type Guard struct {
	log *zap.Logger
}

// NewGuard creates a Guard logging through the given logger.
func NewGuard(log *zap.Logger) *Guard {
	if log == nil {
		log = zap.NewNop()
	}
	return &Guard{log: log}
}

// OnSlotsFreed records that the given slots no longer hold a device and
// flags the wires still attached to them. It returns the number of wires
// newly flagged. Removal must not report success before this returns.
func (g *Guard) OnSlotsFreed(tx WireFlagger, panelID string, slotIDs []string) (int, error) {
	if len(slotIDs) == 0 {
		return 0, nil
	}

	wireIDs, err := tx.FlagOrphanedWires(slotIDs)
	if err != nil {
		return 0, fmt.Errorf("flag orphaned wires: %w", err)
	}
	if len(wireIDs) > 0 {
		g.log.Info("flagged orphaned wires",
			zap.String("panelId", panelID),
			zap.Int("freedSlots", len(slotIDs)),
			zap.Strings("wireIds", wireIDs))
	}
	return len(wireIDs), nil
}
