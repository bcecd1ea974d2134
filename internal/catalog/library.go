// Package catalog loads template libraries from YAML and seeds them into
// storage. A library lists the panel and device products users can pick
// from; the placement engine reads span widths from the stored device
// templates, so the library is the source of truth for slots_required.
package catalog

import (
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/panel-configurator/backend/internal/models"
)

//go:embed library.yaml
var defaultLibraryYAML []byte

// Library is a parsed template catalog.
type Library struct {
	PanelTemplates  []models.PanelTemplate  `yaml:"panel_templates"`
	DeviceTemplates []models.DeviceTemplate `yaml:"device_templates"`
}

// ParseLibrary parses a YAML library file from disk.
func ParseLibrary(filePath string) (*Library, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ParseLibraryFromReader(file)
}

// ParseLibraryFromReader parses a library from an io.Reader and validates it.
func ParseLibraryFromReader(r io.Reader) (*Library, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var lib Library
	if err := yaml.Unmarshal(data, &lib); err != nil {
		return nil, err
	}
	if err := lib.Validate(); err != nil {
		return nil, err
	}
	return &lib, nil
}

// DefaultLibrary returns the embedded catalog shipped with the server.
func DefaultLibrary() (*Library, error) {
	var lib Library
	if err := yaml.Unmarshal(defaultLibraryYAML, &lib); err != nil {
		return nil, fmt.Errorf("embedded library: %w", err)
	}
	if err := lib.Validate(); err != nil {
		return nil, fmt.Errorf("embedded library: %w", err)
	}
	return &lib, nil
}

// Validate checks the library for entries the engine cannot work with:
// missing IDs or names, duplicate IDs, non-positive grid dimensions, and
// device templates spanning fewer than one slot.
func (l *Library) Validate() error {
	seen := map[string]bool{}
	for i, t := range l.PanelTemplates {
		if t.ID == "" {
			return fmt.Errorf("panel template %d: missing id", i)
		}
		if t.Name == "" {
			return fmt.Errorf("panel template %s: missing name", t.ID)
		}
		if seen[t.ID] {
			return fmt.Errorf("panel template %s: duplicate id", t.ID)
		}
		seen[t.ID] = true
		if t.Rows < 1 || t.SlotsPerRow < 1 {
			return fmt.Errorf("panel template %s: grid %dx%d is not a panel", t.ID, t.Rows, t.SlotsPerRow)
		}
	}

	seen = map[string]bool{}
	for i, t := range l.DeviceTemplates {
		if t.ID == "" {
			return fmt.Errorf("device template %d: missing id", i)
		}
		if t.Name == "" {
			return fmt.Errorf("device template %s: missing name", t.ID)
		}
		if seen[t.ID] {
			return fmt.Errorf("device template %s: duplicate id", t.ID)
		}
		seen[t.ID] = true
		if t.SlotsRequired < 1 {
			return fmt.Errorf("device template %s: slots_required %d is below 1", t.ID, t.SlotsRequired)
		}
	}
	return nil
}
