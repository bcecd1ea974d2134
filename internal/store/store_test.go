// store_test.go - Tests for the SQLite-backed panel store
package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/panel-configurator/backend/internal/engine"
	"github.com/panel-configurator/backend/internal/models"
	"github.com/panel-configurator/backend/internal/wiring"
)

// createTestStore creates a temporary SQLite store for testing
func createTestStore(t *testing.T) (*Store, func()) {
	tempDir := t.TempDir()

	s, err := Open(filepath.Join(tempDir, "panels.db"), nil)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	cleanup := func() {
		s.Close()
	}
	return s, cleanup
}

func testPanelTemplate() *models.PanelTemplate {
	return &models.PanelTemplate{
		ID:           "tpl-2x6",
		Name:         "Test 12-way Unit",
		Model:        "T12",
		Manufacturer: "Hager",
		Series:       "Volta",
		Rows:         2,
		SlotsPerRow:  6,
		Voltage:      230,
		MaxCurrent:   100,
		IsActive:     true,
	}
}

func seedTestPanel(t *testing.T, s *Store) *models.Panel {
	t.Helper()
	ctx := context.Background()

	if err := s.UpsertPanelTemplate(ctx, testPanelTemplate()); err != nil {
		t.Fatalf("Failed to upsert panel template: %v", err)
	}
	p, err := s.CreatePanel(ctx, testPanelTemplate(), "Garage Board", "")
	if err != nil {
		t.Fatalf("Failed to create panel: %v", err)
	}
	return p
}

func slotIDByNumber(t *testing.T, slots []models.Slot, n int) string {
	t.Helper()
	for _, s := range slots {
		if s.SlotNumber == n {
			return s.ID
		}
	}
	t.Fatalf("No slot with number %d", n)
	return ""
}

func TestOpenCreatesSchema(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "data", "panels.db")

	s, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("Expected database file to be created")
	}

	panels, devices, err := s.CountTemplates(context.Background())
	if err != nil {
		t.Fatalf("Failed to count templates: %v", err)
	}
	if panels != 0 || devices != 0 {
		t.Errorf("Expected empty catalog, got %d panel / %d device templates", panels, devices)
	}
}

func TestCreatePanelSeedsGrid(t *testing.T) {
	s, cleanup := createTestStore(t)
	defer cleanup()

	p := seedTestPanel(t, s)

	if len(p.Slots) != 12 {
		t.Fatalf("Expected 12 slots, got %d", len(p.Slots))
	}

	seen := map[string]bool{}
	for i, slot := range p.Slots {
		if slot.SlotNumber != i+1 {
			t.Errorf("Expected slot number %d at index %d, got %d", i+1, i, slot.SlotNumber)
		}
		wantRow := i/6 + 1
		wantCol := i%6 + 1
		if slot.Row != wantRow || slot.Column != wantCol {
			t.Errorf("Slot %d: expected position %d/%d, got %d/%d",
				slot.SlotNumber, wantRow, wantCol, slot.Row, slot.Column)
		}
		if slot.IsOccupied || slot.DeviceTemplateID != nil || slot.SpansSlots != 1 {
			t.Errorf("Slot %d: expected a free slot, got %+v", slot.SlotNumber, slot)
		}
		if slot.State != models.SlotStateFree {
			t.Errorf("Slot %d: expected free state, got %s", slot.SlotNumber, slot.State)
		}
		if seen[slot.ID] {
			t.Errorf("Duplicate slot ID %s", slot.ID)
		}
		seen[slot.ID] = true
	}
}

func TestPanelLifecycle(t *testing.T) {
	s, cleanup := createTestStore(t)
	defer cleanup()
	ctx := context.Background()

	p := seedTestPanel(t, s)

	t.Run("get and list", func(t *testing.T) {
		got, err := s.GetPanel(ctx, p.ID)
		if err != nil {
			t.Fatalf("Failed to get panel: %v", err)
		}
		if got == nil || got.Name != "Garage Board" || got.Rows != 2 || got.SlotsPerRow != 6 {
			t.Errorf("Unexpected panel: %+v", got)
		}

		panels, err := s.ListPanels(ctx)
		if err != nil {
			t.Fatalf("Failed to list panels: %v", err)
		}
		if len(panels) != 1 || panels[0].ID != p.ID {
			t.Errorf("Expected one panel %s, got %v", p.ID, panels)
		}
	})

	t.Run("unknown panel reads as nil", func(t *testing.T) {
		got, err := s.GetPanel(ctx, "missing")
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if got != nil {
			t.Errorf("Expected nil for unknown panel, got %+v", got)
		}
	})

	t.Run("update metadata", func(t *testing.T) {
		name := "Workshop Board"
		got, err := s.UpdatePanelMeta(ctx, p.ID, &name, nil)
		if err != nil {
			t.Fatalf("Failed to update panel: %v", err)
		}
		if got.Name != name {
			t.Errorf("Expected name %q, got %q", name, got.Name)
		}
		if !got.UpdatedAt.After(p.UpdatedAt) && !got.UpdatedAt.Equal(p.UpdatedAt) {
			t.Error("Expected updated_at to move forward")
		}

		missing, err := s.UpdatePanelMeta(ctx, "missing", &name, nil)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if missing != nil {
			t.Error("Expected nil when updating an unknown panel")
		}
	})

	t.Run("delete cascades to slots", func(t *testing.T) {
		ok, err := s.DeletePanel(ctx, p.ID)
		if err != nil {
			t.Fatalf("Failed to delete panel: %v", err)
		}
		if !ok {
			t.Fatal("Expected delete to report a removed row")
		}

		slots, err := s.PanelSlots(ctx, p.ID)
		if err != nil {
			t.Fatalf("Failed to read slots: %v", err)
		}
		if len(slots) != 0 {
			t.Errorf("Expected slots to cascade away, got %d", len(slots))
		}

		ok, err = s.DeletePanel(ctx, p.ID)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if ok {
			t.Error("Expected second delete to report nothing removed")
		}
	})
}

func TestSlotPanel(t *testing.T) {
	s, cleanup := createTestStore(t)
	defer cleanup()
	ctx := context.Background()

	p := seedTestPanel(t, s)
	slotID := slotIDByNumber(t, p.Slots, 7)

	got, err := s.SlotPanel(ctx, slotID)
	if err != nil {
		t.Fatalf("Failed to resolve slot: %v", err)
	}
	if got == nil || got.ID != p.ID {
		t.Errorf("Expected panel %s, got %+v", p.ID, got)
	}

	got, err = s.SlotPanel(ctx, "missing")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil for unknown slot, got %+v", got)
	}
}

func TestTemplateCatalog(t *testing.T) {
	s, cleanup := createTestStore(t)
	defer cleanup()
	ctx := context.Background()

	devices := []models.DeviceTemplate{
		{ID: "mcb-16", Name: "MCB 16A", Manufacturer: "Hager", Series: "MyTN", Category: "Protection", SlotsRequired: 1, IsActive: true},
		{ID: "rcd-63", Name: "RCD 63A", Manufacturer: "Hager", Series: "CDC", Category: "Protection", SlotsRequired: 2, IsActive: true},
		{ID: "old-fuse", Name: "Retired Fuse", Manufacturer: "Acme", Category: "Protection", SlotsRequired: 1, IsActive: false},
	}
	for i := range devices {
		if err := s.UpsertDeviceTemplate(ctx, &devices[i]); err != nil {
			t.Fatalf("Failed to upsert device template: %v", err)
		}
	}
	if err := s.UpsertPanelTemplate(ctx, testPanelTemplate()); err != nil {
		t.Fatalf("Failed to upsert panel template: %v", err)
	}

	t.Run("counts", func(t *testing.T) {
		panels, devs, err := s.CountTemplates(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if panels != 1 || devs != 3 {
			t.Errorf("Expected 1/3 templates, got %d/%d", panels, devs)
		}
	})

	t.Run("list hides inactive by default", func(t *testing.T) {
		got, err := s.ListDeviceTemplates(ctx, TemplateFilter{})
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 2 {
			t.Errorf("Expected 2 active templates, got %d", len(got))
		}

		got, err = s.ListDeviceTemplates(ctx, TemplateFilter{IncludeInactive: true})
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 3 {
			t.Errorf("Expected 3 templates with inactive, got %d", len(got))
		}
	})

	t.Run("list filters by manufacturer and series", func(t *testing.T) {
		got, err := s.ListDeviceTemplates(ctx, TemplateFilter{Manufacturer: "hager", Series: "cdc"})
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0].ID != "rcd-63" {
			t.Errorf("Expected only rcd-63, got %v", got)
		}
	})

	t.Run("get returns nil for unknown", func(t *testing.T) {
		got, err := s.GetDeviceTemplate(ctx, "missing")
		if err != nil {
			t.Fatal(err)
		}
		if got != nil {
			t.Errorf("Expected nil, got %+v", got)
		}
	})

	t.Run("fetch returns inactive templates", func(t *testing.T) {
		// Placement validation only needs existence and span width; devices
		// already placed keep resolving after their template is retired.
		got, err := s.FetchDeviceTemplate(ctx, "old-fuse")
		if err != nil {
			t.Fatal(err)
		}
		if got == nil || got.SlotsRequired != 1 {
			t.Errorf("Expected the retired template, got %+v", got)
		}
	})

	t.Run("upsert overwrites", func(t *testing.T) {
		upd := devices[0]
		upd.Name = "MCB 16A Type B"
		if err := s.UpsertDeviceTemplate(ctx, &upd); err != nil {
			t.Fatal(err)
		}
		got, err := s.GetDeviceTemplate(ctx, "mcb-16")
		if err != nil {
			t.Fatal(err)
		}
		if got.Name != "MCB 16A Type B" {
			t.Errorf("Expected updated name, got %q", got.Name)
		}
	})
}

func TestUpdateCommitsSpanWrites(t *testing.T) {
	s, cleanup := createTestStore(t)
	defer cleanup()
	ctx := context.Background()

	p := seedTestPanel(t, s)
	anchorID := slotIDByNumber(t, p.Slots, 9)
	blocked := []string{
		slotIDByNumber(t, p.Slots, 10),
		slotIDByNumber(t, p.Slots, 11),
		slotIDByNumber(t, p.Slots, 12),
	}

	label := "Main Meter"
	err := s.Update(ctx, p.ID, func(tx engine.Tx) error {
		return tx.OccupySpan(models.SpanPlacement{
			PanelID:          p.ID,
			AnchorSlotID:     anchorID,
			DeviceTemplateID: "meter",
			SpansSlots:       4,
			DeviceLabel:      &label,
			BlockedSlotIDs:   blocked,
		})
	})
	if err != nil {
		t.Fatalf("Failed to write span: %v", err)
	}

	slots, err := s.PanelSlots(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	for _, slot := range slots {
		switch {
		case slot.SlotNumber == 9:
			if !slot.IsAnchor() || slot.SpansSlots != 4 || slot.DeviceLabel != label {
				t.Errorf("Slot 9: expected anchor of width 4, got %+v", slot)
			}
		case slot.SlotNumber >= 10:
			if !slot.IsBlocked() || slot.SpansSlots != 1 {
				t.Errorf("Slot %d: expected blocked with spans_slots 1, got %+v", slot.SlotNumber, slot)
			}
		default:
			if slot.IsOccupied {
				t.Errorf("Slot %d: expected free, got occupied", slot.SlotNumber)
			}
		}
	}
}

func TestUpdateRollsBackFailedCallback(t *testing.T) {
	s, cleanup := createTestStore(t)
	defer cleanup()
	ctx := context.Background()

	p := seedTestPanel(t, s)
	anchorID := slotIDByNumber(t, p.Slots, 9)

	boom := errors.New("validation turned the span down")
	err := s.Update(ctx, p.ID, func(tx engine.Tx) error {
		if err := tx.OccupySpan(models.SpanPlacement{
			PanelID:          p.ID,
			AnchorSlotID:     anchorID,
			DeviceTemplateID: "meter",
			SpansSlots:       4,
			BlockedSlotIDs: []string{
				slotIDByNumber(t, p.Slots, 10),
				slotIDByNumber(t, p.Slots, 11),
				slotIDByNumber(t, p.Slots, 12),
			},
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected the callback error, got %v", err)
	}

	slots, err := s.PanelSlots(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	for _, slot := range slots {
		if slot.IsOccupied {
			t.Errorf("Slot %d occupied after rollback", slot.SlotNumber)
		}
	}
}

func TestOccupySpanRejectsForeignSlots(t *testing.T) {
	s, cleanup := createTestStore(t)
	defer cleanup()
	ctx := context.Background()

	p := seedTestPanel(t, s)

	// A blocked-slot ID from another panel touches zero rows; the count
	// check must fail the transaction rather than half-write the span.
	err := s.Update(ctx, p.ID, func(tx engine.Tx) error {
		return tx.OccupySpan(models.SpanPlacement{
			PanelID:          p.ID,
			AnchorSlotID:     slotIDByNumber(t, p.Slots, 1),
			DeviceTemplateID: "rcd-63",
			SpansSlots:       2,
			BlockedSlotIDs:   []string{"someone-elses-slot"},
		})
	})
	if err == nil {
		t.Fatal("Expected span write to fail")
	}

	slots, err := s.PanelSlots(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	for _, slot := range slots {
		if slot.IsOccupied {
			t.Errorf("Slot %d occupied after failed span write", slot.SlotNumber)
		}
	}
}

func TestClearSlotsKeepsCustomProperties(t *testing.T) {
	s, cleanup := createTestStore(t)
	defer cleanup()
	ctx := context.Background()

	p := seedTestPanel(t, s)
	anchorID := slotIDByNumber(t, p.Slots, 3)

	if _, err := s.db.Exec(
		`UPDATE panel_slots SET custom_properties = ? WHERE id = ?`,
		`{"phase":"L1"}`, anchorID); err != nil {
		t.Fatal(err)
	}

	err := s.Update(ctx, p.ID, func(tx engine.Tx) error {
		if err := tx.OccupySpan(models.SpanPlacement{
			PanelID:          p.ID,
			AnchorSlotID:     anchorID,
			DeviceTemplateID: "mcb-16",
			SpansSlots:       1,
		}); err != nil {
			return err
		}
		return tx.ClearSlots([]string{anchorID})
	})
	if err != nil {
		t.Fatal(err)
	}

	slots, err := s.PanelSlots(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	slot := slots[2]
	if slot.IsOccupied || slot.DeviceTemplateID != nil {
		t.Errorf("Expected slot cleared, got %+v", slot)
	}
	if slot.CustomProperties["phase"] != "L1" {
		t.Errorf("Expected custom properties to survive clearing, got %v", slot.CustomProperties)
	}
}

func TestWireLifecycle(t *testing.T) {
	s, cleanup := createTestStore(t)
	defer cleanup()
	ctx := context.Background()

	p := seedTestPanel(t, s)
	src := slotIDByNumber(t, p.Slots, 9)
	dst := slotIDByNumber(t, p.Slots, 1)

	t.Run("create validates panel and endpoints", func(t *testing.T) {
		_, err := s.CreateWire(ctx, &models.Wire{PanelID: "missing", Label: "L1", WireType: models.WireTypeLive})
		if !errors.Is(err, ErrPanelNotFound) {
			t.Errorf("Expected ErrPanelNotFound, got %v", err)
		}

		bad := "foreign-slot"
		_, err = s.CreateWire(ctx, &models.Wire{
			PanelID: p.ID, Label: "L1", WireType: models.WireTypeLive, SourceSlotID: &bad,
		})
		if !errors.Is(err, ErrSlotNotInPanel) {
			t.Errorf("Expected ErrSlotNotInPanel, got %v", err)
		}
	})

	w, err := s.CreateWire(ctx, &models.Wire{
		PanelID:             p.ID,
		Label:               "Kitchen Ring",
		WireType:            models.WireTypeLive,
		CrossSection:        2.5,
		SourceSlotID:        &src,
		ExternalDestination: "Kitchen sockets",
	})
	if err != nil {
		t.Fatalf("Failed to create wire: %v", err)
	}
	if w.ID == "" || w.IsOrphaned {
		t.Errorf("Unexpected wire: %+v", w)
	}

	t.Run("flagging marks and sticks", func(t *testing.T) {
		err := s.Update(ctx, p.ID, func(tx engine.Tx) error {
			flagged, err := tx.FlagOrphanedWires([]string{src})
			if err != nil {
				return err
			}
			if len(flagged) != 1 || flagged[0] != w.ID {
				t.Errorf("Expected wire %s flagged, got %v", w.ID, flagged)
			}
			// Already-orphaned wires are not flagged twice.
			flagged, err = tx.FlagOrphanedWires([]string{src})
			if err != nil {
				return err
			}
			if len(flagged) != 0 {
				t.Errorf("Expected no second flagging, got %v", flagged)
			}
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}

		orphaned, err := s.ListWires(ctx, p.ID, true)
		if err != nil {
			t.Fatal(err)
		}
		if len(orphaned) != 1 || !orphaned[0].IsOrphaned {
			t.Errorf("Expected one orphaned wire, got %v", orphaned)
		}
	})

	t.Run("re-pointing clears the orphan flag", func(t *testing.T) {
		got, err := s.UpdateWire(ctx, w.ID, WireUpdate{SourceSlotID: &dst})
		if err != nil {
			t.Fatalf("Failed to update wire: %v", err)
		}
		if got.IsOrphaned {
			t.Error("Expected re-pointed wire to drop the orphan flag")
		}
		if got.SourceSlotID == nil || *got.SourceSlotID != dst {
			t.Errorf("Expected source %s, got %v", dst, got.SourceSlotID)
		}
	})

	t.Run("empty endpoint becomes external", func(t *testing.T) {
		empty := ""
		got, err := s.UpdateWire(ctx, w.ID, WireUpdate{SourceSlotID: &empty})
		if err != nil {
			t.Fatal(err)
		}
		if got.SourceSlotID != nil {
			t.Errorf("Expected cleared endpoint, got %v", *got.SourceSlotID)
		}
	})

	t.Run("delete", func(t *testing.T) {
		ok, err := s.DeleteWire(ctx, w.ID)
		if err != nil || !ok {
			t.Fatalf("Expected delete to succeed, got ok=%v err=%v", ok, err)
		}
		got, err := s.GetWire(ctx, w.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got != nil {
			t.Errorf("Expected wire gone, got %+v", got)
		}
		ok, err = s.DeleteWire(ctx, w.ID)
		if err != nil || ok {
			t.Errorf("Expected second delete to be a no-op, got ok=%v err=%v", ok, err)
		}
	})
}

// TestExecutorAgainstSQLite drives the placement executor through the real
// database, covering the reference scenario end to end.
func TestExecutorAgainstSQLite(t *testing.T) {
	s, cleanup := createTestStore(t)
	defer cleanup()
	ctx := context.Background()

	p := seedTestPanel(t, s)
	for _, tpl := range []models.DeviceTemplate{
		{ID: "mcb-16", Name: "MCB 16A", SlotsRequired: 1, IsActive: true},
		{ID: "meter", Name: "Smart Meter", SlotsRequired: 4, IsActive: true},
	} {
		cp := tpl
		if err := s.UpsertDeviceTemplate(ctx, &cp); err != nil {
			t.Fatal(err)
		}
	}

	ex := engine.NewExecutor(s, wiring.NewGuard(nil), nil)

	res, err := ex.Place(ctx, engine.PlaceRequest{
		SlotID:           slotIDByNumber(t, p.Slots, 3),
		DeviceTemplateID: "mcb-16",
	})
	if err != nil {
		t.Fatalf("Place at slot 3: %v", err)
	}
	if res.Slots[2].State != models.SlotStateAnchor {
		t.Errorf("Expected slot 3 anchored, got %s", res.Slots[2].State)
	}

	_, err = ex.Place(ctx, engine.PlaceRequest{
		SlotID:           slotIDByNumber(t, p.Slots, 2),
		DeviceTemplateID: "meter",
	})
	var vf *engine.ValidationFailure
	if !errors.As(err, &vf) {
		t.Fatalf("Expected ValidationFailure, got %v", err)
	}
	if vf.Check.Reason != "overlaps existing device" || vf.Check.AvailableSlots != 1 {
		t.Errorf("Unexpected rejection: %+v", vf.Check)
	}

	res, err = ex.Place(ctx, engine.PlaceRequest{
		SlotID:           slotIDByNumber(t, p.Slots, 9),
		DeviceTemplateID: "meter",
	})
	if err != nil {
		t.Fatalf("Place at slot 9: %v", err)
	}
	if res.Slots[8].SpansSlots != 4 || res.Slots[11].State != models.SlotStateBlocked {
		t.Errorf("Unexpected span state: %+v", res.Slots[8:])
	}

	// Wire into the span so removal flags it.
	src := slotIDByNumber(t, p.Slots, 10)
	w, err := s.CreateWire(ctx, &models.Wire{
		PanelID: p.ID, Label: "Meter feed", WireType: models.WireTypeLive, SourceSlotID: &src,
	})
	if err != nil {
		t.Fatal(err)
	}

	res, err = ex.Remove(ctx, slotIDByNumber(t, p.Slots, 11))
	if err != nil {
		t.Fatalf("Remove via slot 11: %v", err)
	}
	if len(res.FreedSlotIDs) != 4 || res.OrphanedWires != 1 {
		t.Errorf("Expected 4 freed slots and 1 orphaned wire, got %d / %d",
			len(res.FreedSlotIDs), res.OrphanedWires)
	}
	for n := 9; n <= 12; n++ {
		if res.Slots[n-1].State != models.SlotStateFree {
			t.Errorf("Slot %d: expected free, got %s", n, res.Slots[n-1].State)
		}
	}

	wires, err := s.ListWires(ctx, p.ID, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(wires) != 1 || wires[0].ID != w.ID {
		t.Errorf("Expected wire %s orphaned, got %v", w.ID, wires)
	}
}

func TestUpdateTransactionBoundaries(t *testing.T) {
	t.Run("rolls back when the callback fails", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatal(err)
		}
		defer db.Close()
		s := New(db, nil)

		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("rejected")
		err = s.Update(context.Background(), "p1", func(tx engine.Tx) error { return boom })
		if !errors.Is(err, boom) {
			t.Errorf("Expected callback error, got %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("Unmet expectations: %v", err)
		}
	})

	t.Run("rolls back when a span write breaks mid-flight", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatal(err)
		}
		defer db.Close()
		s := New(db, nil)

		mock.ExpectBegin()
		// Anchor write lands, the covered-slot write dies.
		mock.ExpectExec("UPDATE panel_slots").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE panel_slots").WillReturnError(errors.New("database is locked"))
		mock.ExpectRollback()

		err = s.Update(context.Background(), "p1", func(tx engine.Tx) error {
			return tx.OccupySpan(models.SpanPlacement{
				PanelID:          "p1",
				AnchorSlotID:     "s9",
				DeviceTemplateID: "meter",
				SpansSlots:       2,
				BlockedSlotIDs:   []string{"s10"},
			})
		})
		if err == nil {
			t.Fatal("Expected the span write error to surface")
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("Unmet expectations: %v", err)
		}
	})

	t.Run("commits when the callback succeeds", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatal(err)
		}
		defer db.Close()
		s := New(db, nil)

		mock.ExpectBegin()
		mock.ExpectCommit()

		if err := s.Update(context.Background(), "p1", func(tx engine.Tx) error { return nil }); err != nil {
			t.Errorf("Unexpected error: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("Unmet expectations: %v", err)
		}
	})
}
