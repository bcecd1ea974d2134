package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/panel-configurator/backend/internal/models"
)

var (
	// ErrPanelNotFound reports a wire operation against an unknown panel.
	ErrPanelNotFound = errors.New("panel not found")
	// ErrWireNotFound reports an update or delete against an unknown wire.
	ErrWireNotFound = errors.New("wire not found")
	// ErrSlotNotInPanel reports a wire endpoint outside the wire's panel.
	ErrSlotNotInPanel = errors.New("slot does not belong to the panel")
)

const wireColumns = `id, panel_id, label, wire_type, cross_section, color,
	source_slot_id, destination_slot_id, external_source, external_destination,
	length, is_orphaned, created_at`

func scanWire(r rowScanner) (*models.Wire, error) {
	var (
		w         models.Wire
		src, dst  sql.NullString
		length    sql.NullFloat64
		createdAt string
	)
	err := r.Scan(&w.ID, &w.PanelID, &w.Label, &w.WireType, &w.CrossSection, &w.Color,
		&src, &dst, &w.ExternalSource, &w.ExternalDestination, &length, &w.IsOrphaned, &createdAt)
	if err != nil {
		return nil, err
	}
	if src.Valid {
		w.SourceSlotID = &src.String
	}
	if dst.Valid {
		w.DestinationSlotID = &dst.String
	}
	if length.Valid {
		w.Length = &length.Float64
	}
	if w.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return nil, fmt.Errorf("parse wire created_at: %w", err)
	}
	return &w, nil
}

// ListWires returns a panel's wires, optionally only the orphaned ones.
func (s *Store) ListWires(ctx context.Context, panelID string, orphanedOnly bool) ([]models.Wire, error) {
	q := `SELECT ` + wireColumns + ` FROM wires WHERE panel_id = ?`
	if orphanedOnly {
		q += ` AND is_orphaned = 1`
	}
	rows, err := s.db.QueryContext(ctx, q+` ORDER BY created_at, id`, panelID)
	if err != nil {
		return nil, fmt.Errorf("query wires: %w", err)
	}
	defer rows.Close()

	var out []models.Wire
	for rows.Next() {
		w, err := scanWire(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wire: %w", err)
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

// GetWire reads one wire, or (nil, nil) when absent.
func (s *Store) GetWire(ctx context.Context, id string) (*models.Wire, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+wireColumns+` FROM wires WHERE id = ?`, id)
	w, err := scanWire(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query wire: %w", err)
	}
	return w, nil
}

// slotBelongsToPanel checks a prospective wire endpoint. A nil slot ID is an
// external endpoint and always valid.
func slotBelongsToPanel(ctx context.Context, q querier, panelID string, slotID *string) error {
	if slotID == nil {
		return nil
	}
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM panel_slots WHERE id = ? AND panel_id = ?`, *slotID, panelID).Scan(&n)
	if err != nil {
		return fmt.Errorf("check wire endpoint: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrSlotNotInPanel, *slotID)
	}
	return nil
}

// CreateWire registers a wire against a panel. Both slot endpoints, when
// set, must belong to that panel.
func (s *Store) CreateWire(ctx context.Context, w *models.Wire) (*models.Wire, error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM panels WHERE id = ?`, w.PanelID).Scan(&n); err != nil {
		return nil, fmt.Errorf("check panel: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: %s", ErrPanelNotFound, w.PanelID)
	}
	if err := slotBelongsToPanel(ctx, tx, w.PanelID, w.SourceSlotID); err != nil {
		return nil, err
	}
	if err := slotBelongsToPanel(ctx, tx, w.PanelID, w.DestinationSlotID); err != nil {
		return nil, err
	}

	created := *w
	created.ID = uuid.New().String()
	created.IsOrphaned = false
	created.CreatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO wires (id, panel_id, label, wire_type, cross_section, color,
			source_slot_id, destination_slot_id, external_source, external_destination,
			length, is_orphaned, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		created.ID, created.PanelID, created.Label, created.WireType, created.CrossSection,
		created.Color, nullableString(created.SourceSlotID), nullableString(created.DestinationSlotID),
		created.ExternalSource, created.ExternalDestination, nullableFloat(created.Length),
		created.CreatedAt.Format(timeFormat))
	if err != nil {
		return nil, fmt.Errorf("insert wire: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return &created, nil
}

// WireUpdate carries partial wire changes. Nil fields stay unchanged. An
// endpoint set to the empty string becomes external (NULL); re-pointing
// either endpoint clears the orphaned flag.
type WireUpdate struct {
	Label               *string
	WireType            *models.WireType
	CrossSection        *float64
	Color               *string
	SourceSlotID        *string
	DestinationSlotID   *string
	ExternalSource      *string
	ExternalDestination *string
	Length              *float64
}

// UpdateWire applies a partial update and returns the stored wire.
func (s *Store) UpdateWire(ctx context.Context, id string, upd WireUpdate) (*models.Wire, error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var panelID string
	err = tx.QueryRowContext(ctx, `SELECT panel_id FROM wires WHERE id = ?`, id).Scan(&panelID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrWireNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query wire: %w", err)
	}

	sets := []string{}
	args := []any{}
	appendSet := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if upd.Label != nil {
		appendSet("label", *upd.Label)
	}
	if upd.WireType != nil {
		appendSet("wire_type", *upd.WireType)
	}
	if upd.CrossSection != nil {
		appendSet("cross_section", *upd.CrossSection)
	}
	if upd.Color != nil {
		appendSet("color", *upd.Color)
	}
	if upd.ExternalSource != nil {
		appendSet("external_source", *upd.ExternalSource)
	}
	if upd.ExternalDestination != nil {
		appendSet("external_destination", *upd.ExternalDestination)
	}
	if upd.Length != nil {
		appendSet("length", *upd.Length)
	}
	repointed := false
	if upd.SourceSlotID != nil {
		if *upd.SourceSlotID == "" {
			appendSet("source_slot_id", nil)
		} else {
			if err := slotBelongsToPanel(ctx, tx, panelID, upd.SourceSlotID); err != nil {
				return nil, err
			}
			appendSet("source_slot_id", *upd.SourceSlotID)
		}
		repointed = true
	}
	if upd.DestinationSlotID != nil {
		if *upd.DestinationSlotID == "" {
			appendSet("destination_slot_id", nil)
		} else {
			if err := slotBelongsToPanel(ctx, tx, panelID, upd.DestinationSlotID); err != nil {
				return nil, err
			}
			appendSet("destination_slot_id", *upd.DestinationSlotID)
		}
		repointed = true
	}
	if repointed {
		appendSet("is_orphaned", 0)
	}

	if len(sets) > 0 {
		args = append(args, id)
		_, err = tx.ExecContext(ctx, `UPDATE wires SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
		if err != nil {
			return nil, fmt.Errorf("update wire: %w", err)
		}
	}

	row := tx.QueryRowContext(ctx, `SELECT `+wireColumns+` FROM wires WHERE id = ?`, id)
	w, err := scanWire(row)
	if err != nil {
		return nil, fmt.Errorf("reload wire: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return w, nil
}

// DeleteWire removes a wire. It reports whether a row was deleted.
func (s *Store) DeleteWire(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM wires WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete wire: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete wire: %w", err)
	}
	return n > 0, nil
}

func nullableString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
