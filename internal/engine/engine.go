// Package engine executes placement operations against a panel's slot
// grid. Every mutation validates and writes inside one storage
// transaction, so two racing placements serialize and the loser is
// validated against the winner's committed state.
package engine

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/panel-configurator/backend/internal/grid"
	"github.com/panel-configurator/backend/internal/models"
	"github.com/panel-configurator/backend/internal/wiring"
)

// Store is the slice of the persistence layer the executor needs.
// Lookups that find nothing return (nil, nil); errors mean storage broke.
type Store interface {
	// SlotPanel resolves a slot ID to the panel owning it.
	SlotPanel(ctx context.Context, slotID string) (*models.Panel, error)
	// PanelSlots reads a panel's full slot set outside any transaction.
	PanelSlots(ctx context.Context, panelID string) ([]models.Slot, error)
	// FetchDeviceTemplate reads a device template. Callers must not cache
	// the result; span widths are re-fetched for every validation.
	FetchDeviceTemplate(ctx context.Context, id string) (*models.DeviceTemplate, error)
	// Update runs fn inside a write transaction scoped to one panel and
	// commits only if fn returns nil.
	Update(ctx context.Context, panelID string, fn func(tx Tx) error) error
}

// Tx is the transactional surface handed to a mutation callback. Reads
// observe the transaction's own writes.
type Tx interface {
	Slots() ([]models.Slot, error)
	DeviceTemplate(id string) (*models.DeviceTemplate, error)
	OccupySpan(p models.SpanPlacement) error
	ClearSlots(slotIDs []string) error
	UpdateAnchor(slotID string, label *string, setting *float64) error
	FlagOrphanedWires(slotIDs []string) ([]string, error)
}

// PlaceRequest carries one placement: which slot anchors it, which device
// template, and the optional instance metadata.
type PlaceRequest struct {
	SlotID           string
	DeviceTemplateID string
	DeviceLabel      *string
	CurrentSetting   *float64
}

// Result is the authoritative outcome of a mutation: the panel's complete
// slot set after commit, plus what a removal freed.
type Result struct {
	PanelID       string
	Slots         []models.Slot
	FreedSlotIDs  []string
	OrphanedWires int
}

// Executor runs placement operations.
type Executor struct {
	store Store
	guard *wiring.Guard
	log   *zap.Logger
}

// NewExecutor creates an Executor over the given store and wiring guard.
func NewExecutor(store Store, guard *wiring.Guard, log *zap.Logger) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{store: store, guard: guard, log: log}
}

// CanPlace answers whether a device template could be anchored at a slot
// right now. It never mutates anything; the answer is advisory and may be
// stale by the time a follow-up placement runs.
func (e *Executor) CanPlace(ctx context.Context, slotID, deviceTemplateID string) (models.PlacementCheck, error) {
	panel, err := e.store.SlotPanel(ctx, slotID)
	if err != nil {
		return models.PlacementCheck{}, &PersistenceFailure{Op: "resolve slot", Err: err}
	}
	if panel == nil {
		return models.PlacementCheck{}, &NotFoundError{Entity: "slot", ID: slotID}
	}

	slots, err := e.store.PanelSlots(ctx, panel.ID)
	if err != nil {
		return models.PlacementCheck{}, &PersistenceFailure{Op: "read slots", Err: err}
	}
	tpl, err := e.store.FetchDeviceTemplate(ctx, deviceTemplateID)
	if err != nil {
		return models.PlacementCheck{}, &PersistenceFailure{Op: "fetch device template", Err: err}
	}

	v, err := grid.NewView(panel.Rows, panel.SlotsPerRow, slots)
	if err != nil {
		return models.PlacementCheck{}, err
	}
	slot, ok := findSlot(slots, slotID)
	if !ok {
		return models.PlacementCheck{}, &NotFoundError{Entity: "slot", ID: slotID}
	}
	return v.CanPlace(slot.SlotNumber, tpl)
}

// Place validates and executes a placement in one transaction. A request
// whose template already anchors the target slot updates the device
// metadata in place instead; any other occupied target is rejected, never
// implicitly replaced.
func (e *Executor) Place(ctx context.Context, req PlaceRequest) (*Result, error) {
	panel, err := e.store.SlotPanel(ctx, req.SlotID)
	if err != nil {
		return nil, &PersistenceFailure{Op: "resolve slot", Err: err}
	}
	if panel == nil {
		return nil, &NotFoundError{Entity: "slot", ID: req.SlotID}
	}

	var (
		result *Result
		placed *models.SpanPlacement
	)
	err = e.store.Update(ctx, panel.ID, func(tx Tx) error {
		slots, err := tx.Slots()
		if err != nil {
			return &PersistenceFailure{Op: "read slots", Err: err}
		}
		slot, ok := findSlot(slots, req.SlotID)
		if !ok {
			return &NotFoundError{Entity: "slot", ID: req.SlotID}
		}

		if slot.IsAnchor() && *slot.DeviceTemplateID == req.DeviceTemplateID {
			if err := tx.UpdateAnchor(slot.ID, req.DeviceLabel, req.CurrentSetting); err != nil {
				return &PersistenceFailure{Op: "update device metadata", Err: err}
			}
			result, err = e.txResult(tx, panel.ID, nil, 0)
			return err
		}

		v, err := grid.NewView(panel.Rows, panel.SlotsPerRow, slots)
		if err != nil {
			return err
		}
		tpl, err := tx.DeviceTemplate(req.DeviceTemplateID)
		if err != nil {
			return &PersistenceFailure{Op: "fetch device template", Err: err}
		}
		check, err := v.CanPlace(slot.SlotNumber, tpl)
		if err != nil {
			return err
		}
		if !check.CanPlace {
			return &ValidationFailure{Check: check}
		}

		span := models.SpanPlacement{
			PanelID:          panel.ID,
			AnchorSlotID:     slot.ID,
			DeviceTemplateID: tpl.ID,
			SpansSlots:       tpl.SlotsRequired,
			DeviceLabel:      req.DeviceLabel,
			CurrentSetting:   req.CurrentSetting,
		}
		for n := slot.SlotNumber + 1; n < slot.SlotNumber+tpl.SlotsRequired; n++ {
			covered, _ := v.SlotByNumber(n)
			span.BlockedSlotIDs = append(span.BlockedSlotIDs, covered.ID)
		}
		if err := tx.OccupySpan(span); err != nil {
			return &PersistenceFailure{Op: "write span", Err: err}
		}
		placed = &span

		result, err = e.txResult(tx, panel.ID, nil, 0)
		return err
	})
	if err != nil {
		return nil, wrapUpdateErr("place device", err)
	}
	if placed != nil {
		e.log.Info("device placed",
			zap.String("panelId", panel.ID),
			zap.String("templateId", placed.DeviceTemplateID),
			zap.String("anchorSlotId", placed.AnchorSlotID),
			zap.Int("spansSlots", placed.SpansSlots))
	}
	return result, nil
}

// Remove frees the whole span covering a slot. The slot may be the anchor
// or any covered slot; the anchor is resolved backwards within the row.
// Removing from an already-free slot succeeds and changes nothing.
func (e *Executor) Remove(ctx context.Context, slotID string) (*Result, error) {
	panel, err := e.store.SlotPanel(ctx, slotID)
	if err != nil {
		return nil, &PersistenceFailure{Op: "resolve slot", Err: err}
	}
	if panel == nil {
		return nil, &NotFoundError{Entity: "slot", ID: slotID}
	}

	var result *Result
	err = e.store.Update(ctx, panel.ID, func(tx Tx) error {
		slots, err := tx.Slots()
		if err != nil {
			return &PersistenceFailure{Op: "read slots", Err: err}
		}
		slot, ok := findSlot(slots, slotID)
		if !ok {
			return &NotFoundError{Entity: "slot", ID: slotID}
		}
		v, err := grid.NewView(panel.Rows, panel.SlotsPerRow, slots)
		if err != nil {
			return err
		}

		anchor, ok := v.AnchorOf(slot.SlotNumber)
		if !ok {
			result, err = e.txResult(tx, panel.ID, nil, 0)
			return err
		}

		freed := make([]string, 0, anchor.SpansSlots)
		for _, s := range v.SpanOf(anchor) {
			freed = append(freed, s.ID)
		}
		if err := tx.ClearSlots(freed); err != nil {
			return &PersistenceFailure{Op: "clear span", Err: err}
		}
		orphaned, err := e.guard.OnSlotsFreed(tx, panel.ID, freed)
		if err != nil {
			return &PersistenceFailure{Op: "flag orphaned wires", Err: err}
		}

		result, err = e.txResult(tx, panel.ID, freed, orphaned)
		return err
	})
	if err != nil {
		return nil, wrapUpdateErr("remove device", err)
	}
	if len(result.FreedSlotIDs) > 0 {
		e.log.Info("device removed",
			zap.String("panelId", panel.ID),
			zap.Int("freedSlots", len(result.FreedSlotIDs)),
			zap.Int("orphanedWires", result.OrphanedWires))
	}
	return result, nil
}

// Reconfigure updates the label and current setting on a placed device.
// It touches no occupancy state and skips spatial validation; the slot
// only has to be an anchor.
func (e *Executor) Reconfigure(ctx context.Context, slotID string, label *string, setting *float64) (*Result, error) {
	panel, err := e.store.SlotPanel(ctx, slotID)
	if err != nil {
		return nil, &PersistenceFailure{Op: "resolve slot", Err: err}
	}
	if panel == nil {
		return nil, &NotFoundError{Entity: "slot", ID: slotID}
	}

	var result *Result
	err = e.store.Update(ctx, panel.ID, func(tx Tx) error {
		slots, err := tx.Slots()
		if err != nil {
			return &PersistenceFailure{Op: "read slots", Err: err}
		}
		slot, ok := findSlot(slots, slotID)
		if !ok {
			return &NotFoundError{Entity: "slot", ID: slotID}
		}
		if !slot.IsAnchor() {
			return &NotConfigurableError{SlotID: slotID, State: slot.DeriveState()}
		}
		if err := tx.UpdateAnchor(slot.ID, label, setting); err != nil {
			return &PersistenceFailure{Op: "update device metadata", Err: err}
		}
		result, err = e.txResult(tx, panel.ID, nil, 0)
		return err
	})
	if err != nil {
		return nil, wrapUpdateErr("reconfigure device", err)
	}
	return result, nil
}

// txResult re-reads the slot set inside the transaction and assembles the
// authoritative response.
func (e *Executor) txResult(tx Tx, panelID string, freed []string, orphaned int) (*Result, error) {
	slots, err := tx.Slots()
	if err != nil {
		return nil, &PersistenceFailure{Op: "read slots", Err: err}
	}
	return &Result{
		PanelID:       panelID,
		Slots:         normalizeSlots(slots),
		FreedSlotIDs:  freed,
		OrphanedWires: orphaned,
	}, nil
}

// wrapUpdateErr labels transaction machinery failures (begin, commit) as
// persistence failures while passing the engine's own error types through
// untouched.
func wrapUpdateErr(op string, err error) error {
	var vf *ValidationFailure
	var nf *NotFoundError
	var nc *NotConfigurableError
	var pf *PersistenceFailure
	if errors.As(err, &vf) || errors.As(err, &nf) || errors.As(err, &nc) || errors.As(err, &pf) {
		return err
	}
	if errors.Is(err, grid.ErrInvalidSpanWidth) || errors.Is(err, grid.ErrInvalidSlotPosition) {
		return err
	}
	return &PersistenceFailure{Op: op, Err: err}
}

func findSlot(slots []models.Slot, slotID string) (models.Slot, bool) {
	for _, s := range slots {
		if s.ID == slotID {
			return s, true
		}
	}
	return models.Slot{}, false
}

func normalizeSlots(slots []models.Slot) []models.Slot {
	out := make([]models.Slot, len(slots))
	copy(out, slots)
	sort.Slice(out, func(i, j int) bool { return out[i].SlotNumber < out[j].SlotNumber })
	for i := range out {
		out[i].State = out[i].DeriveState()
	}
	return out
}
