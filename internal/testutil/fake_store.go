// fake_store.go - In-memory store implementation for testing
package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/panel-configurator/backend/internal/engine"
	"github.com/panel-configurator/backend/internal/models"
	"github.com/panel-configurator/backend/internal/store"
)

// FakeStore implements the storage interfaces in memory. Update clones the
// panel state, applies the callback to the clone, and swaps it in only on
// success, so a failed transaction leaves the panel exactly as it was.
type FakeStore struct {
	panels          map[string]*models.Panel
	slots           map[string][]models.Slot // panelID -> slots in slot_number order
	wires           map[string][]models.Wire // panelID -> wires
	panelTemplates  map[string]*models.PanelTemplate
	deviceTemplates map[string]*models.DeviceTemplate
	mu              sync.RWMutex

	// TemplateFetches counts device template lookups, transactional and
	// not. Placement tests assert it grows with every validation.
	TemplateFetches int

	// Failure injection. A non-nil error makes the matching call fail.
	FailSlotPanel     error
	FailPanelSlots    error
	FailFetchTemplate error
	FailUpdate        error
	FailOccupy        error
	FailClear         error
	FailFlagWires     error
}

// NewFakeStore creates an empty fake store.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		panels:          make(map[string]*models.Panel),
		slots:           make(map[string][]models.Slot),
		wires:           make(map[string][]models.Wire),
		panelTemplates:  make(map[string]*models.PanelTemplate),
		deviceTemplates: make(map[string]*models.DeviceTemplate),
	}
}

func (f *FakeStore) SlotPanel(ctx context.Context, slotID string) (*models.Panel, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.FailSlotPanel != nil {
		return nil, f.FailSlotPanel
	}
	for panelID, slots := range f.slots {
		for _, s := range slots {
			if s.ID == slotID {
				p := *f.panels[panelID]
				return &p, nil
			}
		}
	}
	return nil, nil
}

func (f *FakeStore) PanelSlots(ctx context.Context, panelID string) ([]models.Slot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.FailPanelSlots != nil {
		return nil, f.FailPanelSlots
	}
	return cloneSlots(f.slots[panelID]), nil
}

func (f *FakeStore) FetchDeviceTemplate(ctx context.Context, id string) (*models.DeviceTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.TemplateFetches++
	if f.FailFetchTemplate != nil {
		return nil, f.FailFetchTemplate
	}
	tpl, ok := f.deviceTemplates[id]
	if !ok {
		return nil, nil
	}
	t := *tpl
	return &t, nil
}

// Update clones the panel's slots and wires, hands the clone to fn, and
// publishes it only when fn succeeds.
func (f *FakeStore) Update(ctx context.Context, panelID string, fn func(tx engine.Tx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailUpdate != nil {
		return f.FailUpdate
	}
	tx := &fakeTx{
		f:     f,
		slots: cloneSlots(f.slots[panelID]),
		wires: cloneWires(f.wires[panelID]),
	}
	if err := fn(tx); err != nil {
		return err
	}
	f.slots[panelID] = tx.slots
	f.wires[panelID] = tx.wires
	return nil
}

// Ensure FakeStore implements the executor's storage interface
var _ engine.Store = (*FakeStore)(nil)

// fakeTx applies mutations to the cloned panel state.
type fakeTx struct {
	f     *FakeStore
	slots []models.Slot
	wires []models.Wire
}

var _ engine.Tx = (*fakeTx)(nil)

func (t *fakeTx) Slots() ([]models.Slot, error) {
	return cloneSlots(t.slots), nil
}

func (t *fakeTx) DeviceTemplate(id string) (*models.DeviceTemplate, error) {
	t.f.TemplateFetches++
	if t.f.FailFetchTemplate != nil {
		return nil, t.f.FailFetchTemplate
	}
	tpl, ok := t.f.deviceTemplates[id]
	if !ok {
		return nil, nil
	}
	out := *tpl
	return &out, nil
}

func (t *fakeTx) OccupySpan(p models.SpanPlacement) error {
	if t.f.FailOccupy != nil {
		return t.f.FailOccupy
	}
	anchor := t.find(p.AnchorSlotID)
	if anchor == nil {
		return fmt.Errorf("anchor slot %s not found", p.AnchorSlotID)
	}
	anchor.IsOccupied = true
	anchor.DeviceTemplateID = &p.DeviceTemplateID
	anchor.SpansSlots = p.SpansSlots
	anchor.DeviceLabel = ""
	if p.DeviceLabel != nil {
		anchor.DeviceLabel = *p.DeviceLabel
	}
	anchor.CurrentSetting = p.CurrentSetting

	for _, id := range p.BlockedSlotIDs {
		blocked := t.find(id)
		if blocked == nil {
			return fmt.Errorf("blocked slot %s not found", id)
		}
		blocked.IsOccupied = true
		blocked.DeviceTemplateID = nil
		blocked.SpansSlots = 1
		blocked.DeviceLabel = ""
		blocked.CurrentSetting = nil
	}
	return nil
}

func (t *fakeTx) ClearSlots(slotIDs []string) error {
	if t.f.FailClear != nil {
		return t.f.FailClear
	}
	for _, id := range slotIDs {
		s := t.find(id)
		if s == nil {
			return fmt.Errorf("slot %s not found", id)
		}
		s.IsOccupied = false
		s.DeviceTemplateID = nil
		s.SpansSlots = 1
		s.DeviceLabel = ""
		s.CurrentSetting = nil
	}
	return nil
}

func (t *fakeTx) UpdateAnchor(slotID string, label *string, setting *float64) error {
	s := t.find(slotID)
	if s == nil {
		return fmt.Errorf("slot %s not found", slotID)
	}
	if label != nil {
		s.DeviceLabel = *label
	}
	if setting != nil {
		s.CurrentSetting = setting
	}
	return nil
}

func (t *fakeTx) FlagOrphanedWires(slotIDs []string) ([]string, error) {
	if t.f.FailFlagWires != nil {
		return nil, t.f.FailFlagWires
	}
	freed := make(map[string]bool, len(slotIDs))
	for _, id := range slotIDs {
		freed[id] = true
	}
	var flagged []string
	for i := range t.wires {
		w := &t.wires[i]
		if w.IsOrphaned {
			continue
		}
		touches := (w.SourceSlotID != nil && freed[*w.SourceSlotID]) ||
			(w.DestinationSlotID != nil && freed[*w.DestinationSlotID])
		if touches {
			w.IsOrphaned = true
			flagged = append(flagged, w.ID)
		}
	}
	return flagged, nil
}

func (t *fakeTx) find(slotID string) *models.Slot {
	for i := range t.slots {
		if t.slots[i].ID == slotID {
			return &t.slots[i]
		}
	}
	return nil
}

// Panel, template, and wire methods backing the HTTP handlers.

func (f *FakeStore) CreatePanel(ctx context.Context, tpl *models.PanelTemplate, name, description string) (*models.Panel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now().UTC()
	p := &models.Panel{
		ID:            generateTestID(),
		TemplateID:    tpl.ID,
		Name:          name,
		Manufacturer:  tpl.Manufacturer,
		Model:         tpl.Model,
		Rows:          tpl.Rows,
		SlotsPerRow:   tpl.SlotsPerRow,
		Voltage:       tpl.Voltage,
		CurrentRating: tpl.MaxCurrent,
		Description:   description,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	f.panels[p.ID] = p
	f.slots[p.ID] = seedSlots(p.ID, tpl.Rows, tpl.SlotsPerRow)

	out := *p
	out.Slots = cloneSlots(f.slots[p.ID])
	return &out, nil
}

func (f *FakeStore) GetPanel(ctx context.Context, id string) (*models.Panel, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	p, ok := f.panels[id]
	if !ok {
		return nil, nil
	}
	out := *p
	return &out, nil
}

func (f *FakeStore) ListPanels(ctx context.Context) ([]models.Panel, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var out []models.Panel
	for _, p := range f.panels {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *FakeStore) UpdatePanelMeta(ctx context.Context, id string, name, description *string) (*models.Panel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.panels[id]
	if !ok {
		return nil, nil
	}
	if name != nil {
		p.Name = *name
	}
	if description != nil {
		p.Description = *description
	}
	p.UpdatedAt = time.Now().UTC()
	out := *p
	return &out, nil
}

func (f *FakeStore) DeletePanel(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.panels[id]; !ok {
		return false, nil
	}
	delete(f.panels, id)
	delete(f.slots, id)
	delete(f.wires, id)
	return true, nil
}

func (f *FakeStore) ListPanelTemplates(ctx context.Context, filter store.TemplateFilter) ([]models.PanelTemplate, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var out []models.PanelTemplate
	for _, t := range f.panelTemplates {
		if !filter.IncludeInactive && !t.IsActive {
			continue
		}
		if !matchesFilter(t.Manufacturer, filter.Manufacturer) || !matchesFilter(t.Series, filter.Series) {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *FakeStore) GetPanelTemplate(ctx context.Context, id string) (*models.PanelTemplate, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	t, ok := f.panelTemplates[id]
	if !ok {
		return nil, nil
	}
	out := *t
	return &out, nil
}

func (f *FakeStore) ListDeviceTemplates(ctx context.Context, filter store.TemplateFilter) ([]models.DeviceTemplate, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var out []models.DeviceTemplate
	for _, t := range f.deviceTemplates {
		if !filter.IncludeInactive && !t.IsActive {
			continue
		}
		if !matchesFilter(t.Manufacturer, filter.Manufacturer) ||
			!matchesFilter(t.Series, filter.Series) ||
			!matchesFilter(t.Category, filter.Category) {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *FakeStore) GetDeviceTemplate(ctx context.Context, id string) (*models.DeviceTemplate, error) {
	return f.FetchDeviceTemplate(ctx, id)
}

func (f *FakeStore) UpsertPanelTemplate(ctx context.Context, t *models.PanelTemplate) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	cp := *t
	f.panelTemplates[t.ID] = &cp
	return nil
}

func (f *FakeStore) UpsertDeviceTemplate(ctx context.Context, t *models.DeviceTemplate) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	cp := *t
	f.deviceTemplates[t.ID] = &cp
	return nil
}

func (f *FakeStore) CountTemplates(ctx context.Context) (int, int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.panelTemplates), len(f.deviceTemplates), nil
}

func (f *FakeStore) ListWires(ctx context.Context, panelID string, orphanedOnly bool) ([]models.Wire, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var out []models.Wire
	for _, w := range f.wires[panelID] {
		if orphanedOnly && !w.IsOrphaned {
			continue
		}
		out = append(out, w)
	}
	return out, nil
}

func (f *FakeStore) GetWire(ctx context.Context, id string) (*models.Wire, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, wires := range f.wires {
		for _, w := range wires {
			if w.ID == id {
				out := w
				return &out, nil
			}
		}
	}
	return nil, nil
}

func (f *FakeStore) CreateWire(ctx context.Context, w *models.Wire) (*models.Wire, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.panels[w.PanelID]; !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrPanelNotFound, w.PanelID)
	}
	for _, endpoint := range []*string{w.SourceSlotID, w.DestinationSlotID} {
		if endpoint == nil {
			continue
		}
		if f.findSlotLocked(w.PanelID, *endpoint) == nil {
			return nil, fmt.Errorf("%w: %s", store.ErrSlotNotInPanel, *endpoint)
		}
	}

	created := *w
	created.ID = generateTestID()
	created.IsOrphaned = false
	created.CreatedAt = time.Now().UTC()
	f.wires[w.PanelID] = append(f.wires[w.PanelID], created)
	return &created, nil
}

func (f *FakeStore) UpdateWire(ctx context.Context, id string, upd store.WireUpdate) (*models.Wire, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for panelID, wires := range f.wires {
		for i := range wires {
			if wires[i].ID != id {
				continue
			}
			w := &f.wires[panelID][i]
			if upd.Label != nil {
				w.Label = *upd.Label
			}
			if upd.WireType != nil {
				w.WireType = *upd.WireType
			}
			if upd.CrossSection != nil {
				w.CrossSection = *upd.CrossSection
			}
			if upd.Color != nil {
				w.Color = *upd.Color
			}
			if upd.ExternalSource != nil {
				w.ExternalSource = *upd.ExternalSource
			}
			if upd.ExternalDestination != nil {
				w.ExternalDestination = *upd.ExternalDestination
			}
			if upd.Length != nil {
				w.Length = upd.Length
			}
			repointed := false
			if upd.SourceSlotID != nil {
				if *upd.SourceSlotID == "" {
					w.SourceSlotID = nil
				} else {
					if f.findSlotLocked(panelID, *upd.SourceSlotID) == nil {
						return nil, fmt.Errorf("%w: %s", store.ErrSlotNotInPanel, *upd.SourceSlotID)
					}
					w.SourceSlotID = upd.SourceSlotID
				}
				repointed = true
			}
			if upd.DestinationSlotID != nil {
				if *upd.DestinationSlotID == "" {
					w.DestinationSlotID = nil
				} else {
					if f.findSlotLocked(panelID, *upd.DestinationSlotID) == nil {
						return nil, fmt.Errorf("%w: %s", store.ErrSlotNotInPanel, *upd.DestinationSlotID)
					}
					w.DestinationSlotID = upd.DestinationSlotID
				}
				repointed = true
			}
			if repointed {
				w.IsOrphaned = false
			}
			out := *w
			return &out, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", store.ErrWireNotFound, id)
}

func (f *FakeStore) DeleteWire(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for panelID, wires := range f.wires {
		for i := range wires {
			if wires[i].ID == id {
				f.wires[panelID] = append(wires[:i:i], wires[i+1:]...)
				return true, nil
			}
		}
	}
	return false, nil
}

// Test Helper Methods

// AddPanel creates a panel with a freshly seeded grid and returns it.
func (f *FakeStore) AddPanel(id string, rows, slotsPerRow int) *models.Panel {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now().UTC()
	p := &models.Panel{
		ID:          id,
		TemplateID:  "tpl-" + id,
		Name:        "Panel " + id,
		Rows:        rows,
		SlotsPerRow: slotsPerRow,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	f.panels[id] = p
	f.slots[id] = seedSlots(id, rows, slotsPerRow)
	return p
}

// AddPanelTemplate registers a panel template directly.
func (f *FakeStore) AddPanelTemplate(t models.PanelTemplate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.panelTemplates[t.ID] = &t
}

// AddDeviceTemplate registers a device template directly.
func (f *FakeStore) AddDeviceTemplate(id string, slotsRequired int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deviceTemplates[id] = &models.DeviceTemplate{
		ID:            id,
		Name:          "Device " + id,
		SlotsRequired: slotsRequired,
		IsActive:      true,
	}
}

// AddWire registers a wire between two slot IDs (either may be empty for an
// external endpoint) and returns its ID.
func (f *FakeStore) AddWire(panelID, sourceSlotID, destinationSlotID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	w := models.Wire{
		ID:        generateTestID(),
		PanelID:   panelID,
		Label:     "wire",
		WireType:  models.WireTypeLive,
		CreatedAt: time.Now().UTC(),
	}
	if sourceSlotID != "" {
		w.SourceSlotID = &sourceSlotID
	}
	if destinationSlotID != "" {
		w.DestinationSlotID = &destinationSlotID
	}
	f.wires[panelID] = append(f.wires[panelID], w)
	return w.ID
}

// SeedSpan installs a device directly: the anchor takes the template and
// width, the following slots turn blocked.
func (f *FakeStore) SeedSpan(panelID string, anchorNumber int, templateID string, spansSlots int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	slots := f.slots[panelID]
	for i := range slots {
		n := slots[i].SlotNumber
		if n == anchorNumber {
			tpl := templateID
			slots[i].IsOccupied = true
			slots[i].DeviceTemplateID = &tpl
			slots[i].SpansSlots = spansSlots
		} else if n > anchorNumber && n < anchorNumber+spansSlots {
			slots[i].IsOccupied = true
			slots[i].DeviceTemplateID = nil
			slots[i].SpansSlots = 1
		}
	}
}

// SlotID returns the ID of the slot at a 1-based slot number.
func (f *FakeStore) SlotID(panelID string, slotNumber int) string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, s := range f.slots[panelID] {
		if s.SlotNumber == slotNumber {
			return s.ID
		}
	}
	return ""
}

// SlotByNumber returns a copy of the slot at a 1-based slot number.
func (f *FakeStore) SlotByNumber(panelID string, slotNumber int) (models.Slot, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, s := range f.slots[panelID] {
		if s.SlotNumber == slotNumber {
			return s, true
		}
	}
	return models.Slot{}, false
}

// SlotSnapshot returns a deep copy of a panel's slot set.
func (f *FakeStore) SlotSnapshot(panelID string) []models.Slot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return cloneSlots(f.slots[panelID])
}

// OrphanedWireIDs lists the IDs of a panel's orphaned wires.
func (f *FakeStore) OrphanedWireIDs(panelID string) []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var out []string
	for _, w := range f.wires[panelID] {
		if w.IsOrphaned {
			out = append(out, w.ID)
		}
	}
	return out
}

func (f *FakeStore) findSlotLocked(panelID, slotID string) *models.Slot {
	slots := f.slots[panelID]
	for i := range slots {
		if slots[i].ID == slotID {
			return &slots[i]
		}
	}
	return nil
}

func seedSlots(panelID string, rows, slotsPerRow int) []models.Slot {
	slots := make([]models.Slot, 0, rows*slotsPerRow)
	for row := 1; row <= rows; row++ {
		for col := 1; col <= slotsPerRow; col++ {
			n := (row-1)*slotsPerRow + col
			slots = append(slots, models.Slot{
				ID:         fmt.Sprintf("slot-%s-%d", panelID, n),
				PanelID:    panelID,
				SlotNumber: n,
				Row:        row,
				Column:     col,
				SpansSlots: 1,
			})
		}
	}
	return slots
}

func cloneSlots(slots []models.Slot) []models.Slot {
	out := make([]models.Slot, len(slots))
	for i, s := range slots {
		cp := s
		if s.DeviceTemplateID != nil {
			v := *s.DeviceTemplateID
			cp.DeviceTemplateID = &v
		}
		if s.CurrentSetting != nil {
			v := *s.CurrentSetting
			cp.CurrentSetting = &v
		}
		if s.CustomProperties != nil {
			props := make(map[string]any, len(s.CustomProperties))
			for k, v := range s.CustomProperties {
				props[k] = v
			}
			cp.CustomProperties = props
		}
		out[i] = cp
	}
	return out
}

func cloneWires(wires []models.Wire) []models.Wire {
	out := make([]models.Wire, len(wires))
	for i, w := range wires {
		cp := w
		if w.SourceSlotID != nil {
			v := *w.SourceSlotID
			cp.SourceSlotID = &v
		}
		if w.DestinationSlotID != nil {
			v := *w.DestinationSlotID
			cp.DestinationSlotID = &v
		}
		if w.Length != nil {
			v := *w.Length
			cp.Length = &v
		}
		out[i] = cp
	}
	return out
}

// generateTestID generates a simple test ID
var testIDCounter int
var testIDMutex sync.Mutex

func generateTestID() string {
	testIDMutex.Lock()
	defer testIDMutex.Unlock()
	testIDCounter++
	return fmt.Sprintf("test-id-%d", testIDCounter)
}

func matchesFilter(value, filter string) bool {
	if filter == "" {
		return true
	}
	return strings.Contains(strings.ToLower(value), strings.ToLower(filter))
}
