package models

// PlacementCheck is the outcome of asking whether a device template can be
// anchored at a slot. AvailableSlots counts the contiguous free run starting
// at the candidate slot within its row, and is reported on overlap
// rejections so a client can show how much room there actually is.
type PlacementCheck struct {
	CanPlace       bool   `json:"can_place"`
	Reason         string `json:"reason"`
	RequiredSlots  int    `json:"required_slots"`
	AvailableSlots int    `json:"available_slots"`
}

// SpanPlacement is the slot-field write that installs one device: the
// anchor takes the device reference and span width, the covered slots turn
// blocked. A store must apply all of it or none of it.
type SpanPlacement struct {
	PanelID          string
	AnchorSlotID     string
	DeviceTemplateID string
	SpansSlots       int
	DeviceLabel      *string
	CurrentSetting   *float64
	BlockedSlotIDs   []string
}
