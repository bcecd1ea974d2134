package models

// PanelTemplate describes a manufacturer panel product: the grid shape a
// panel built from it will have, plus catalog metadata.
type PanelTemplate struct {
	ID               string  `json:"id" yaml:"id"`
	Name             string  `json:"name" yaml:"name"`
	Model            string  `json:"model,omitempty" yaml:"model,omitempty"`
	Manufacturer     string  `json:"manufacturer,omitempty" yaml:"manufacturer,omitempty"`
	Series           string  `json:"series,omitempty" yaml:"series,omitempty"`
	Rows             int     `json:"rows" yaml:"rows"`
	SlotsPerRow      int     `json:"slots_per_row" yaml:"slots_per_row"`
	Voltage          float64 `json:"voltage,omitempty" yaml:"voltage,omitempty"`
	MaxCurrent       float64 `json:"max_current,omitempty" yaml:"max_current,omitempty"`
	EnclosureType    string  `json:"enclosure_type,omitempty" yaml:"enclosure_type,omitempty"`
	ProtectionRating string  `json:"protection_rating,omitempty" yaml:"protection_rating,omitempty"`
	Description      string  `json:"description,omitempty" yaml:"description,omitempty"`
	IsActive         bool    `json:"is_active" yaml:"is_active"`
}

// DeviceTemplate describes a device product that can be placed into panel
// slots. SlotsRequired is the span width; it must be at least 1.
type DeviceTemplate struct {
	ID            string  `json:"id" yaml:"id"`
	Name          string  `json:"name" yaml:"name"`
	Model         string  `json:"model,omitempty" yaml:"model,omitempty"`
	Manufacturer  string  `json:"manufacturer,omitempty" yaml:"manufacturer,omitempty"`
	Series        string  `json:"series,omitempty" yaml:"series,omitempty"`
	DeviceType    string  `json:"device_type,omitempty" yaml:"device_type,omitempty"` // e.g. "MCB", "RCD", "Smart Meter"
	Category      string  `json:"category,omitempty" yaml:"category,omitempty"`       // e.g. "Protection", "Measurement"
	SlotsRequired int     `json:"slots_required" yaml:"slots_required"`
	RatedCurrent  float64 `json:"rated_current,omitempty" yaml:"rated_current,omitempty"`
	MaxCurrent    float64 `json:"max_current,omitempty" yaml:"max_current,omitempty"`
	VoltageRange  string  `json:"voltage_range,omitempty" yaml:"voltage_range,omitempty"`
	PoleCount     int     `json:"pole_count,omitempty" yaml:"pole_count,omitempty"`
	Description   string  `json:"description,omitempty" yaml:"description,omitempty"`
	IsActive      bool    `json:"is_active" yaml:"is_active"`
}
