// reconciler.go - Client-side grid state with optimistic previews
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/panel-configurator/backend/internal/api"
	"github.com/panel-configurator/backend/internal/grid"
	"github.com/panel-configurator/backend/internal/models"
)

// defaultNoticeTTL is how long a rejection notice stays visible.
const defaultNoticeTTL = 4 * time.Second

// Notice is a user-facing message about a failed mutation. The Message is
// the server's rejection reason verbatim; Check carries the span arithmetic
// when the failure was a placement rejection.
type Notice struct {
	Message   string
	Check     *models.PlacementCheck
	CreatedAt time.Time
	ExpiresAt time.Time
}

// pendingOp is the optimistic overlay: at most one in-flight mutation per
// panel, rendered ahead of the server's verdict. An empty templateID marks
// a pending removal.
type pendingOp struct {
	anchor     int
	spans      int
	templateID string
	freed      []int
}

// panelState pairs a panel's metadata with its current grid snapshot.
type panelState struct {
	panel   models.Panel
	view    *grid.View
	pending *pendingOp
}

// Reconciler keeps authoritative grid snapshots for the panels an editor
// has open. Previews run against the local snapshot; mutations go to the
// server, and whatever slot set the server returns replaces the snapshot
// wholesale. The server's validator has the last word on every placement.
type Reconciler struct {
	api *APIClient
	log *zap.Logger

	noticeTTL time.Duration
	now       func() time.Time

	mu      sync.RWMutex
	panels  map[string]*panelState
	notices []Notice
}

// NewReconciler creates a reconciler over the given API client.
func NewReconciler(apiClient *APIClient, log *zap.Logger) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{
		api:       apiClient,
		log:       log,
		noticeTTL: defaultNoticeTTL,
		now:       time.Now,
		panels:    make(map[string]*panelState),
	}
}

// Load fetches a panel with its slot set and starts tracking it.
func (r *Reconciler) Load(ctx context.Context, panelID string) error {
	panel, err := r.api.Panel(ctx, panelID)
	if err != nil {
		return err
	}
	view, err := grid.NewView(panel.Rows, panel.SlotsPerRow, panel.Slots)
	if err != nil {
		return fmt.Errorf("build grid view: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.panels[panelID] = &panelState{panel: *panel, view: view}
	return nil
}

// Refresh replaces a tracked panel's snapshot with the server's current
// slot set, fetched over the compact msgpack path.
func (r *Reconciler) Refresh(ctx context.Context, panelID string) error {
	slots, err := r.api.PanelSlots(ctx, panelID)
	if err != nil {
		return err
	}
	if !r.applySlots(panelID, slots) {
		return fmt.Errorf("panel %s not loaded", panelID)
	}
	return nil
}

// Preview runs the placement check against the local snapshot and, when it
// passes, paints the span as pending so the UI can render the drop before
// the server confirms it. The server re-validates on Place; a stale
// snapshot makes the preview wrong, never the commit.
func (r *Reconciler) Preview(panelID string, slotNumber int, tpl *models.DeviceTemplate) (models.PlacementCheck, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.panels[panelID]
	if !ok {
		return models.PlacementCheck{}, fmt.Errorf("panel %s not loaded", panelID)
	}

	check, err := st.view.CanPlace(slotNumber, tpl)
	if err != nil {
		return models.PlacementCheck{}, err
	}
	if check.CanPlace {
		st.pending = &pendingOp{
			anchor:     slotNumber,
			spans:      tpl.SlotsRequired,
			templateID: tpl.ID,
		}
	} else {
		st.pending = nil
	}
	return check, nil
}

// ClearPreview drops the pending overlay without touching the server.
func (r *Reconciler) ClearPreview(panelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.panels[panelID]; ok {
		st.pending = nil
	}
}

// Place anchors a device at a slot. On success the server's slot set
// replaces the snapshot; on failure the overlay is dropped, the snapshot
// is re-fetched and the rejection becomes a Notice.
func (r *Reconciler) Place(ctx context.Context, panelID string, slotNumber int, deviceTemplateID string, label *string, setting *float64) (*SlotUpdate, error) {
	slotID, err := r.slotID(panelID, slotNumber)
	if err != nil {
		return nil, err
	}

	update, err := r.api.PlaceDevice(ctx, slotID, deviceTemplateID, label, setting)
	if err != nil {
		r.mutationFailed(ctx, panelID, err)
		return nil, err
	}
	r.applySlots(panelID, update.Slots)
	return update, nil
}

// Remove frees the whole span covering a slot. The span is painted free
// while the request is in flight.
func (r *Reconciler) Remove(ctx context.Context, panelID string, slotNumber int) (*SlotUpdate, error) {
	r.mu.Lock()
	st, ok := r.panels[panelID]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("panel %s not loaded", panelID)
	}
	slot, ok := st.view.SlotByNumber(slotNumber)
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("slot %d outside panel %s", slotNumber, panelID)
	}
	if anchor, covered := st.view.AnchorOf(slotNumber); covered {
		op := &pendingOp{freed: make([]int, 0, anchor.SpansSlots)}
		for _, s := range st.view.SpanOf(anchor) {
			op.freed = append(op.freed, s.SlotNumber)
		}
		st.pending = op
	}
	r.mu.Unlock()

	update, err := r.api.RemoveDevice(ctx, slot.ID)
	if err != nil {
		r.mutationFailed(ctx, panelID, err)
		return nil, err
	}
	r.applySlots(panelID, update.Slots)
	return update, nil
}

// Reconfigure updates the label or trip setting of the device covering a
// slot. Re-placing the anchor's own template is the metadata-update path,
// so this rides the regular placement endpoint against the anchor slot.
func (r *Reconciler) Reconfigure(ctx context.Context, panelID string, slotNumber int, label *string, setting *float64) (*SlotUpdate, error) {
	r.mu.RLock()
	st, ok := r.panels[panelID]
	var anchor models.Slot
	covered := false
	if ok {
		anchor, covered = st.view.AnchorOf(slotNumber)
	}
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("panel %s not loaded", panelID)
	}
	if !covered || anchor.DeviceTemplateID == nil {
		return nil, fmt.Errorf("slot %d has no device to reconfigure", slotNumber)
	}

	update, err := r.api.PlaceDevice(ctx, anchor.ID, *anchor.DeviceTemplateID, label, setting)
	if err != nil {
		r.mutationFailed(ctx, panelID, err)
		return nil, err
	}
	r.applySlots(panelID, update.Slots)
	return update, nil
}

// SlotState returns a slot as the UI should draw it: the authoritative
// snapshot with the pending overlay painted on top.
func (r *Reconciler) SlotState(panelID string, slotNumber int) (models.Slot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.panels[panelID]
	if !ok {
		return models.Slot{}, false
	}
	slot, ok := st.view.SlotByNumber(slotNumber)
	if !ok {
		return models.Slot{}, false
	}
	return overlaySlot(slot, st.pending), true
}

// Slots returns the full merged slot set in slot-number order.
func (r *Reconciler) Slots(panelID string) []models.Slot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.panels[panelID]
	if !ok {
		return nil
	}
	slots := st.view.Slots()
	for i := range slots {
		slots[i] = overlaySlot(slots[i], st.pending)
	}
	return slots
}

// Notices returns the rejection messages that have not yet expired.
func (r *Reconciler) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	kept := r.notices[:0]
	for _, n := range r.notices {
		if n.ExpiresAt.After(now) {
			kept = append(kept, n)
		}
	}
	r.notices = kept

	out := make([]Notice, len(kept))
	copy(out, kept)
	return out
}

// WatchPanel subscribes to the server's change feed and folds every update
// for the panel into the local snapshot. It blocks until the context is
// cancelled or the feed drops.
func (r *Reconciler) WatchPanel(ctx context.Context, panelID string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, r.api.FeedURL(), nil)
	if err != nil {
		return fmt.Errorf("dial change feed: %w", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(api.WSMessage{Type: api.MsgTypeSubscribe, PanelID: panelID}); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var msg api.WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read change feed: %w", err)
		}
		if msg.Type != api.MsgTypePanelUpdated || msg.PanelID != panelID {
			continue
		}

		var payload api.PanelUpdatedPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			r.log.Warn("bad change feed payload", zap.Error(err))
			continue
		}
		r.applySlots(payload.PanelID, payload.Slots)
	}
}

// slotID resolves a slot number to its ID within a tracked panel.
func (r *Reconciler) slotID(panelID string, slotNumber int) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.panels[panelID]
	if !ok {
		return "", fmt.Errorf("panel %s not loaded", panelID)
	}
	slot, ok := st.view.SlotByNumber(slotNumber)
	if !ok {
		return "", fmt.Errorf("slot %d outside panel %s", slotNumber, panelID)
	}
	return slot.ID, nil
}

// applySlots swaps in a new authoritative slot set and clears the overlay.
// Returns false when the panel is not tracked.
func (r *Reconciler) applySlots(panelID string, slots []models.Slot) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.panels[panelID]
	if !ok {
		return false
	}
	view, err := grid.NewView(st.panel.Rows, st.panel.SlotsPerRow, slots)
	if err != nil {
		r.log.Error("rebuild grid view", zap.String("panel_id", panelID), zap.Error(err))
		return false
	}
	st.view = view
	st.pending = nil
	return true
}

// mutationFailed rolls the panel back to the server's truth: drop the
// overlay, surface the reason, re-fetch the snapshot.
func (r *Reconciler) mutationFailed(ctx context.Context, panelID string, cause error) {
	r.ClearPreview(panelID)

	var rej *APIRejection
	if errors.As(cause, &rej) {
		r.pushNotice(rej.Message, rej.Check)
	} else {
		r.pushNotice(cause.Error(), nil)
	}

	if err := r.Refresh(ctx, panelID); err != nil {
		r.log.Warn("refresh after failed mutation",
			zap.String("panel_id", panelID),
			zap.Error(err))
	}
}

func (r *Reconciler) pushNotice(message string, check *models.PlacementCheck) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	r.notices = append(r.notices, Notice{
		Message:   message,
		Check:     check,
		CreatedAt: now,
		ExpiresAt: now.Add(r.noticeTTL),
	})
}

// overlaySlot paints the in-flight mutation over an authoritative slot.
func overlaySlot(slot models.Slot, op *pendingOp) models.Slot {
	if op == nil {
		return slot
	}

	if op.templateID == "" {
		for _, n := range op.freed {
			if slot.SlotNumber != n {
				continue
			}
			slot.IsOccupied = false
			slot.DeviceTemplateID = nil
			slot.DeviceLabel = ""
			slot.CurrentSetting = nil
			slot.SpansSlots = 1
			slot.State = models.SlotStateFree
			return slot
		}
		return slot
	}

	switch {
	case slot.SlotNumber == op.anchor:
		id := op.templateID
		slot.IsOccupied = true
		slot.DeviceTemplateID = &id
		slot.SpansSlots = op.spans
		slot.State = models.SlotStateAnchor
	case slot.SlotNumber > op.anchor && slot.SlotNumber < op.anchor+op.spans:
		slot.IsOccupied = true
		slot.DeviceTemplateID = nil
		slot.DeviceLabel = ""
		slot.CurrentSetting = nil
		slot.SpansSlots = 1
		slot.State = models.SlotStateBlocked
	}
	return slot
}
