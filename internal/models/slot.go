package models

// SlotState is the derived occupancy state of a single slot.
type SlotState string

const (
	// SlotStateFree marks a slot with no device and no span covering it.
	SlotStateFree SlotState = "free"
	// SlotStateAnchor marks the leftmost slot of a placed device's span.
	SlotStateAnchor SlotState = "anchor"
	// SlotStateBlocked marks a slot covered by another slot's span.
	SlotStateBlocked SlotState = "blocked"
)

// Slot represents one physical position in a panel grid. Slot IDs are
// assigned when the panel is created and stay stable for the panel's
// lifetime; placements only flip the occupancy fields.
//
// A multi-slot device is recorded on its anchor slot only: the anchor
// carries the device template reference and the span width, the covered
// slots are occupied with no device reference. SpansSlots is meaningful
// on anchors; blocked and free slots always carry 1.
type Slot struct {
	ID               string         `json:"id"`
	PanelID          string         `json:"panel_id"`
	SlotNumber       int            `json:"slot_number"` // 1-based, row-major
	Row              int            `json:"row"`         // 1-based
	Column           int            `json:"column"`      // 1-based within the row
	IsOccupied       bool           `json:"is_occupied"`
	DeviceTemplateID *string        `json:"device_template_id"`
	DeviceLabel      string         `json:"device_label,omitempty"`
	CurrentSetting   *float64       `json:"current_setting,omitempty"`
	SpansSlots       int            `json:"spans_slots"`
	CustomProperties map[string]any `json:"custom_properties,omitempty"`
	State            SlotState      `json:"state"`
}

// IsAnchor reports whether the slot holds a device reference.
func (s *Slot) IsAnchor() bool {
	return s.IsOccupied && s.DeviceTemplateID != nil
}

// IsBlocked reports whether the slot is covered by a neighbouring anchor's span.
func (s *Slot) IsBlocked() bool {
	return s.IsOccupied && s.DeviceTemplateID == nil
}

// DeriveState computes the State field from the occupancy fields.
func (s *Slot) DeriveState() SlotState {
	switch {
	case s.IsAnchor():
		return SlotStateAnchor
	case s.IsBlocked():
		return SlotStateBlocked
	default:
		return SlotStateFree
	}
}
