package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/panel-configurator/backend/internal/models"
)

const timeFormat = time.RFC3339Nano

var panelColumns = []string{
	"id", "template_id", "name", "manufacturer", "model", "rows", "slots_per_row",
	"voltage", "current_rating", "description", "created_at", "updated_at",
}

func scanPanel(r rowScanner) (*models.Panel, error) {
	var (
		p                    models.Panel
		createdAt, updatedAt string
	)
	err := r.Scan(&p.ID, &p.TemplateID, &p.Name, &p.Manufacturer, &p.Model, &p.Rows,
		&p.SlotsPerRow, &p.Voltage, &p.CurrentRating, &p.Description, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if p.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at of panel %s: %w", p.ID, err)
	}
	if p.UpdatedAt, err = time.Parse(timeFormat, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at of panel %s: %w", p.ID, err)
	}
	return &p, nil
}

// CreatePanel creates a panel from a panel template and seeds its full
// slot grid in the same transaction. Slot IDs assigned here stay stable
// for the panel's lifetime.
func (s *Store) CreatePanel(ctx context.Context, tpl *models.PanelTemplate, name, description string) (*models.Panel, error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	p := &models.Panel{
		ID:            uuid.New().String(),
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

	_, err = tx.ExecContext(ctx,
		`INSERT INTO panels (id, template_id, name, manufacturer, model, rows, slots_per_row,
			voltage, current_rating, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.TemplateID, p.Name, p.Manufacturer, p.Model, p.Rows, p.SlotsPerRow,
		p.Voltage, p.CurrentRating, p.Description, now.Format(timeFormat), now.Format(timeFormat))
	if err != nil {
		return nil, fmt.Errorf("insert panel: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO panel_slots (id, panel_id, slot_number, grid_row, grid_col)
		 VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare slot insert: %w", err)
	}
	defer stmt.Close()

	for row := 1; row <= p.Rows; row++ {
		for col := 1; col <= p.SlotsPerRow; col++ {
			n := (row-1)*p.SlotsPerRow + col
			if _, err := stmt.ExecContext(ctx, uuid.New().String(), p.ID, n, row, col); err != nil {
				return nil, fmt.Errorf("seed slot %d: %w", n, err)
			}
		}
	}

	if p.Slots, err = querySlots(ctx, tx, p.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return p, nil
}

// GetPanel reads panel metadata, or (nil, nil) when absent.
func (s *Store) GetPanel(ctx context.Context, id string) (*models.Panel, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+strings.Join(panelColumns, ", ")+` FROM panels WHERE id = ?`, id)
	p, err := scanPanel(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query panel: %w", err)
	}
	return p, nil
}

// ListPanels returns all panels, oldest first.
func (s *Store) ListPanels(ctx context.Context) ([]models.Panel, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+strings.Join(panelColumns, ", ")+` FROM panels ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query panels: %w", err)
	}
	defer rows.Close()

	var panels []models.Panel
	for rows.Next() {
		p, err := scanPanel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan panel: %w", err)
		}
		panels = append(panels, *p)
	}
	return panels, rows.Err()
}

// UpdatePanelMeta changes a panel's name and description. The grid shape
// is fixed at creation and cannot be updated. Returns (nil, nil) when the
// panel does not exist.
func (s *Store) UpdatePanelMeta(ctx context.Context, id string, name, description *string) (*models.Panel, error) {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC().Format(timeFormat)}
	if name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *name)
	}
	if description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *description)
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE panels SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update panel: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetPanel(ctx, id)
}

// DeletePanel removes a panel with its slots and wires. Returns false
// when the panel does not exist.
func (s *Store) DeletePanel(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM panels WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete panel: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
