package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/panel-configurator/backend/internal/models"
)

// TemplateFilter narrows template listings. Empty fields match everything;
// inactive templates are hidden unless IncludeInactive is set.
type TemplateFilter struct {
	Manufacturer    string
	Series          string
	Category        string
	IncludeInactive bool
}

func (f TemplateFilter) where(hasCategory bool) (string, []any) {
	conds := []string{}
	args := []any{}
	if !f.IncludeInactive {
		conds = append(conds, "is_active = 1")
	}
	if f.Manufacturer != "" {
		conds = append(conds, "manufacturer LIKE ?")
		args = append(args, "%"+f.Manufacturer+"%")
	}
	if f.Series != "" {
		conds = append(conds, "series LIKE ?")
		args = append(args, "%"+f.Series+"%")
	}
	if hasCategory && f.Category != "" {
		conds = append(conds, "category LIKE ?")
		args = append(args, "%"+f.Category+"%")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

const panelTemplateColumns = `id, name, model, manufacturer, series, rows, slots_per_row,
	voltage, max_current, enclosure_type, protection_rating, description, is_active`

func scanPanelTemplate(r rowScanner) (*models.PanelTemplate, error) {
	var t models.PanelTemplate
	err := r.Scan(&t.ID, &t.Name, &t.Model, &t.Manufacturer, &t.Series, &t.Rows,
		&t.SlotsPerRow, &t.Voltage, &t.MaxCurrent, &t.EnclosureType, &t.ProtectionRating,
		&t.Description, &t.IsActive)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListPanelTemplates returns catalog panel templates matching the filter.
func (s *Store) ListPanelTemplates(ctx context.Context, f TemplateFilter) ([]models.PanelTemplate, error) {
	where, args := f.where(false)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+panelTemplateColumns+` FROM panel_templates`+where+` ORDER BY name`, args...)
	if err != nil {
		return nil, fmt.Errorf("query panel templates: %w", err)
	}
	defer rows.Close()

	var out []models.PanelTemplate
	for rows.Next() {
		t, err := scanPanelTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan panel template: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// GetPanelTemplate reads one panel template, or (nil, nil) when absent.
func (s *Store) GetPanelTemplate(ctx context.Context, id string) (*models.PanelTemplate, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+panelTemplateColumns+` FROM panel_templates WHERE id = ?`, id)
	t, err := scanPanelTemplate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query panel template: %w", err)
	}
	return t, nil
}

// UpsertPanelTemplate inserts or replaces a catalog panel template.
func (s *Store) UpsertPanelTemplate(ctx context.Context, t *models.PanelTemplate) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO panel_templates (id, name, model, manufacturer, series, rows, slots_per_row,
			voltage, max_current, enclosure_type, protection_rating, description, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, model = excluded.model, manufacturer = excluded.manufacturer,
			series = excluded.series, rows = excluded.rows, slots_per_row = excluded.slots_per_row,
			voltage = excluded.voltage, max_current = excluded.max_current,
			enclosure_type = excluded.enclosure_type, protection_rating = excluded.protection_rating,
			description = excluded.description, is_active = excluded.is_active`,
		t.ID, t.Name, t.Model, t.Manufacturer, t.Series, t.Rows, t.SlotsPerRow,
		t.Voltage, t.MaxCurrent, t.EnclosureType, t.ProtectionRating, t.Description, t.IsActive)
	if err != nil {
		return fmt.Errorf("upsert panel template: %w", err)
	}
	return nil
}

const deviceTemplateColumns = `id, name, model, manufacturer, series, device_type, category,
	slots_required, rated_current, max_current, voltage_range, pole_count, description, is_active`

// ListDeviceTemplates returns catalog device templates matching the filter.
func (s *Store) ListDeviceTemplates(ctx context.Context, f TemplateFilter) ([]models.DeviceTemplate, error) {
	where, args := f.where(true)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+deviceTemplateColumns+` FROM device_templates`+where+` ORDER BY name`, args...)
	if err != nil {
		return nil, fmt.Errorf("query device templates: %w", err)
	}
	defer rows.Close()

	var out []models.DeviceTemplate
	for rows.Next() {
		var t models.DeviceTemplate
		err := rows.Scan(&t.ID, &t.Name, &t.Model, &t.Manufacturer, &t.Series, &t.DeviceType,
			&t.Category, &t.SlotsRequired, &t.RatedCurrent, &t.MaxCurrent, &t.VoltageRange,
			&t.PoleCount, &t.Description, &t.IsActive)
		if err != nil {
			return nil, fmt.Errorf("scan device template: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetDeviceTemplate reads one device template, or (nil, nil) when absent.
func (s *Store) GetDeviceTemplate(ctx context.Context, id string) (*models.DeviceTemplate, error) {
	return queryDeviceTemplate(ctx, s.db, id)
}

// UpsertDeviceTemplate inserts or replaces a catalog device template.
func (s *Store) UpsertDeviceTemplate(ctx context.Context, t *models.DeviceTemplate) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO device_templates (id, name, model, manufacturer, series, device_type, category,
			slots_required, rated_current, max_current, voltage_range, pole_count, description, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, model = excluded.model, manufacturer = excluded.manufacturer,
			series = excluded.series, device_type = excluded.device_type, category = excluded.category,
			slots_required = excluded.slots_required, rated_current = excluded.rated_current,
			max_current = excluded.max_current, voltage_range = excluded.voltage_range,
			pole_count = excluded.pole_count, description = excluded.description,
			is_active = excluded.is_active`,
		t.ID, t.Name, t.Model, t.Manufacturer, t.Series, t.DeviceType, t.Category,
		t.SlotsRequired, t.RatedCurrent, t.MaxCurrent, t.VoltageRange, t.PoleCount,
		t.Description, t.IsActive)
	if err != nil {
		return fmt.Errorf("upsert device template: %w", err)
	}
	return nil
}

// CountTemplates reports how many templates of each kind exist, active or
// not. The catalog seeder uses it to decide whether to load the library.
func (s *Store) CountTemplates(ctx context.Context) (panels, devices int, err error) {
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM panel_templates`).Scan(&panels); err != nil {
		return 0, 0, fmt.Errorf("count panel templates: %w", err)
	}
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM device_templates`).Scan(&devices); err != nil {
		return 0, 0, fmt.Errorf("count device templates: %w", err)
	}
	return panels, devices, nil
}
