package models

import "time"

// WireType classifies a wire's electrical role.
type WireType string

const (
	WireTypeLive         WireType = "Live"
	WireTypeNeutral      WireType = "Neutral"
	WireTypeEarth        WireType = "Earth"
	WireTypeSwitchedLive WireType = "Switched Live"
	WireTypeData         WireType = "Data"
)

// Wire represents a connection registered against panel slots. Either end
// may point at a slot or at an external label. Wires are never deleted when
// their endpoint devices are removed; they are flagged orphaned instead and
// kept until a user re-points or deletes them.
type Wire struct {
	ID                  string    `json:"id"`
	PanelID             string    `json:"panel_id"`
	Label               string    `json:"label"` // e.g. "L1", "Kitchen Lights"
	WireType            WireType  `json:"wire_type"`
	CrossSection        float64   `json:"cross_section"` // mm²
	Color               string    `json:"color,omitempty"`
	SourceSlotID        *string   `json:"source_slot_id"`
	DestinationSlotID   *string   `json:"destination_slot_id"`
	ExternalSource      string    `json:"external_source,omitempty"`
	ExternalDestination string    `json:"external_destination,omitempty"`
	Length              *float64  `json:"length,omitempty"` // meters
	IsOrphaned          bool      `json:"is_orphaned"`
	CreatedAt           time.Time `json:"created_at"`
}

// WireColorStandard lists conventional conductor colors per wire type for
// one region. Informational only; nothing validates against it.
type WireColorStandard map[WireType][]string

// CrossSectionRating maps a circuit current to the conventional conductor
// cross-section for it.
type CrossSectionRating struct {
	Current      string  `json:"current"`       // e.g. "32A"
	CrossSection float64 `json:"cross_section"` // mm²
	TypicalUse   string  `json:"typical_use"`
}
