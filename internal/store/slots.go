package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/panel-configurator/backend/internal/engine"
	"github.com/panel-configurator/backend/internal/models"
)

// The store is the persistence half of the placement executor.
var _ engine.Store = (*Store)(nil)

const slotColumns = `id, panel_id, slot_number, grid_row, grid_col, is_occupied,
	device_template_id, device_label, current_setting, spans_slots, custom_properties`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSlot(r rowScanner) (models.Slot, error) {
	var (
		s          models.Slot
		templateID sql.NullString
		setting    sql.NullFloat64
		propsJSON  string
	)
	err := r.Scan(&s.ID, &s.PanelID, &s.SlotNumber, &s.Row, &s.Column, &s.IsOccupied,
		&templateID, &s.DeviceLabel, &setting, &s.SpansSlots, &propsJSON)
	if err != nil {
		return models.Slot{}, err
	}
	if templateID.Valid {
		s.DeviceTemplateID = &templateID.String
	}
	if setting.Valid {
		s.CurrentSetting = &setting.Float64
	}
	if propsJSON != "" && propsJSON != "{}" {
		if err := json.Unmarshal([]byte(propsJSON), &s.CustomProperties); err != nil {
			return models.Slot{}, fmt.Errorf("decode custom properties of slot %s: %w", s.ID, err)
		}
	}
	s.State = s.DeriveState()
	return s, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func querySlots(ctx context.Context, q querier, panelID string) ([]models.Slot, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+slotColumns+` FROM panel_slots WHERE panel_id = ? ORDER BY slot_number`, panelID)
	if err != nil {
		return nil, fmt.Errorf("query slots: %w", err)
	}
	defer rows.Close()

	var slots []models.Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

func queryDeviceTemplate(ctx context.Context, q querier, id string) (*models.DeviceTemplate, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, name, model, manufacturer, series, device_type, category, slots_required,
			rated_current, max_current, voltage_range, pole_count, description, is_active
		 FROM device_templates WHERE id = ?`, id)
	var t models.DeviceTemplate
	err := row.Scan(&t.ID, &t.Name, &t.Model, &t.Manufacturer, &t.Series, &t.DeviceType,
		&t.Category, &t.SlotsRequired, &t.RatedCurrent, &t.MaxCurrent, &t.VoltageRange,
		&t.PoleCount, &t.Description, &t.IsActive)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query device template: %w", err)
	}
	return &t, nil
}

// SlotPanel resolves a slot ID to its owning panel, or (nil, nil) when the
// slot does not exist.
func (s *Store) SlotPanel(ctx context.Context, slotID string) (*models.Panel, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT p.`+strings.Join(panelColumns, ", p.")+`
		 FROM panels p JOIN panel_slots ps ON ps.panel_id = p.id
		 WHERE ps.id = ?`, slotID)
	p, err := scanPanel(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve slot panel: %w", err)
	}
	return p, nil
}

// PanelSlots reads a panel's full slot set in slot-number order.
func (s *Store) PanelSlots(ctx context.Context, panelID string) ([]models.Slot, error) {
	return querySlots(ctx, s.db, panelID)
}

// FetchDeviceTemplate reads a device template, or (nil, nil) when absent.
// Every call hits the database; span widths are never answered from a cache.
func (s *Store) FetchDeviceTemplate(ctx context.Context, id string) (*models.DeviceTemplate, error) {
	return queryDeviceTemplate(ctx, s.db, id)
}

// Update runs fn in a write transaction. The transaction commits only if
// fn returns nil; any error leaves the panel untouched.
func (s *Store) Update(ctx context.Context, panelID string, fn func(tx engine.Tx) error) error {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(&panelTx{ctx: ctx, tx: tx, panelID: panelID}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// panelTx is the transactional view handed to the placement executor.
type panelTx struct {
	ctx     context.Context
	tx      *sql.Tx
	panelID string
}

var _ engine.Tx = (*panelTx)(nil)

func (t *panelTx) Slots() ([]models.Slot, error) {
	return querySlots(t.ctx, t.tx, t.panelID)
}

func (t *panelTx) DeviceTemplate(id string) (*models.DeviceTemplate, error) {
	return queryDeviceTemplate(t.ctx, t.tx, id)
}

// OccupySpan writes one placement: device fields on the anchor, blocked
// state on the covered slots. Row counts are verified so a span that
// no longer matches the read state aborts the transaction.
func (t *panelTx) OccupySpan(p models.SpanPlacement) error {
	label := ""
	if p.DeviceLabel != nil {
		label = *p.DeviceLabel
	}
	var setting any
	if p.CurrentSetting != nil {
		setting = *p.CurrentSetting
	}

	res, err := t.tx.ExecContext(t.ctx,
		`UPDATE panel_slots
		 SET is_occupied = 1, device_template_id = ?, spans_slots = ?, device_label = ?, current_setting = ?
		 WHERE id = ? AND panel_id = ?`,
		p.DeviceTemplateID, p.SpansSlots, label, setting, p.AnchorSlotID, t.panelID)
	if err != nil {
		return fmt.Errorf("write anchor: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return fmt.Errorf("anchor write touched %d slots, want 1", n)
	}

	if len(p.BlockedSlotIDs) == 0 {
		return nil
	}
	args := make([]any, 0, len(p.BlockedSlotIDs)+1)
	for _, id := range p.BlockedSlotIDs {
		args = append(args, id)
	}
	args = append(args, t.panelID)
	res, err = t.tx.ExecContext(t.ctx,
		`UPDATE panel_slots
		 SET is_occupied = 1, device_template_id = NULL, spans_slots = 1, device_label = '', current_setting = NULL
		 WHERE id IN (`+placeholders(len(p.BlockedSlotIDs))+`) AND panel_id = ?`, args...)
	if err != nil {
		return fmt.Errorf("write covered slots: %w", err)
	}
	if n, _ := res.RowsAffected(); n != int64(len(p.BlockedSlotIDs)) {
		return fmt.Errorf("span write touched %d slots, want %d", n, len(p.BlockedSlotIDs))
	}
	return nil
}

// ClearSlots frees a whole span. Custom properties survive removal; only
// the device fields reset.
func (t *panelTx) ClearSlots(slotIDs []string) error {
	if len(slotIDs) == 0 {
		return nil
	}
	args := make([]any, 0, len(slotIDs)+1)
	for _, id := range slotIDs {
		args = append(args, id)
	}
	args = append(args, t.panelID)
	res, err := t.tx.ExecContext(t.ctx,
		`UPDATE panel_slots
		 SET is_occupied = 0, device_template_id = NULL, spans_slots = 1, device_label = '', current_setting = NULL
		 WHERE id IN (`+placeholders(len(slotIDs))+`) AND panel_id = ?`, args...)
	if err != nil {
		return fmt.Errorf("clear span: %w", err)
	}
	if n, _ := res.RowsAffected(); n != int64(len(slotIDs)) {
		return fmt.Errorf("span clear touched %d slots, want %d", n, len(slotIDs))
	}
	return nil
}

// UpdateAnchor updates device metadata in place. Nil fields stay unchanged.
func (t *panelTx) UpdateAnchor(slotID string, label *string, setting *float64) error {
	sets := []string{}
	args := []any{}
	if label != nil {
		sets = append(sets, "device_label = ?")
		args = append(args, *label)
	}
	if setting != nil {
		sets = append(sets, "current_setting = ?")
		args = append(args, *setting)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, slotID, t.panelID)
	res, err := t.tx.ExecContext(t.ctx,
		`UPDATE panel_slots SET `+strings.Join(sets, ", ")+` WHERE id = ? AND panel_id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update anchor: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return fmt.Errorf("anchor update touched %d slots, want 1", n)
	}
	return nil
}

// FlagOrphanedWires marks wires touching the given slots and returns the
// IDs newly flagged.
func (t *panelTx) FlagOrphanedWires(slotIDs []string) ([]string, error) {
	if len(slotIDs) == 0 {
		return nil, nil
	}
	ph := placeholders(len(slotIDs))
	args := make([]any, 0, 2*len(slotIDs))
	for _, id := range slotIDs {
		args = append(args, id)
	}
	for _, id := range slotIDs {
		args = append(args, id)
	}
	rows, err := t.tx.QueryContext(t.ctx,
		`UPDATE wires SET is_orphaned = 1
		 WHERE is_orphaned = 0 AND (source_slot_id IN (`+ph+`) OR destination_slot_id IN (`+ph+`))
		 RETURNING id`, args...)
	if err != nil {
		return nil, fmt.Errorf("flag wires: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan wire id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
