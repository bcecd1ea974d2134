// Package models contains domain types for the panel configurator.
package models

import "time"

// Panel represents a distribution panel instance built from a panel template.
// The template relationship is fixed at creation; the grid dimensions are
// copied onto the panel and never change afterwards.
type Panel struct {
	ID            string    `json:"id"`
	TemplateID    string    `json:"template_id"`
	Name          string    `json:"name"`
	Manufacturer  string    `json:"manufacturer,omitempty"`
	Model         string    `json:"model,omitempty"`
	Rows          int       `json:"rows"`
	SlotsPerRow   int       `json:"slots_per_row"`
	Voltage       float64   `json:"voltage,omitempty"`
	CurrentRating float64   `json:"current_rating,omitempty"`
	Description   string    `json:"description,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	// Slots is populated on detail responses, nil on list responses.
	Slots []Slot `json:"slots,omitempty"`
}

// TotalSlots returns the number of slots in the panel grid.
func (p *Panel) TotalSlots() int {
	return p.Rows * p.SlotsPerRow
}
