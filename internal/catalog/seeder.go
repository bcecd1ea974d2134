package catalog

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/panel-configurator/backend/internal/models"
)

// TemplateWriter defines the interface needed from the storage layer.
type TemplateWriter interface {
	CountTemplates(ctx context.Context) (panels, devices int, err error)
	UpsertPanelTemplate(ctx context.Context, t *models.PanelTemplate) error
	UpsertDeviceTemplate(ctx context.Context, t *models.DeviceTemplate) error
}

// Seeder writes template libraries into storage.
type Seeder struct {
	store TemplateWriter
	log   *zap.Logger
}

// NewSeeder creates a seeder. A nil logger falls back to a no-op logger.
func NewSeeder(store TemplateWriter, log *zap.Logger) *Seeder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Seeder{store: store, log: log}
}

// EnsureSeeded writes lib into storage when no templates exist yet. It
// reports whether seeding ran; a populated catalog is left untouched.
func (s *Seeder) EnsureSeeded(ctx context.Context, lib *Library) (bool, error) {
	panels, devices, err := s.store.CountTemplates(ctx)
	if err != nil {
		return false, err
	}
	if panels > 0 || devices > 0 {
		s.log.Info("template catalog already populated, skipping seed",
			zap.Int("panel_templates", panels),
			zap.Int("device_templates", devices))
		return false, nil
	}
	if err := s.Seed(ctx, lib); err != nil {
		return false, err
	}
	return true, nil
}

// Seed upserts every template in lib. Existing templates with the same IDs
// are overwritten.
func (s *Seeder) Seed(ctx context.Context, lib *Library) error {
	if err := lib.Validate(); err != nil {
		return err
	}
	for i := range lib.PanelTemplates {
		if err := s.store.UpsertPanelTemplate(ctx, &lib.PanelTemplates[i]); err != nil {
			return fmt.Errorf("seed panel template %s: %w", lib.PanelTemplates[i].ID, err)
		}
	}
	for i := range lib.DeviceTemplates {
		if err := s.store.UpsertDeviceTemplate(ctx, &lib.DeviceTemplates[i]); err != nil {
			return fmt.Errorf("seed device template %s: %w", lib.DeviceTemplates[i].ID, err)
		}
	}
	s.log.Info("seeded template catalog",
		zap.Int("panel_templates", len(lib.PanelTemplates)),
		zap.Int("device_templates", len(lib.DeviceTemplates)))
	return nil
}
