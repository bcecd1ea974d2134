package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/panel-configurator/backend/internal/models"
)

func TestWireHandler_HandleCreateWire(t *testing.T) {
	h, f := newTestDeps()
	srcID := f.SlotID("p1", 3)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantErr    bool
		errCode    string
	}{
		{
			name: "slot to external",
			body: `{"panel_id":"p1","label":"Kitchen Ring","wire_type":"Live","cross_section":2.5,` +
				`"source_slot_id":"` + srcID + `","external_destination":"Kitchen sockets"}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "unknown panel",
			body:       `{"panel_id":"missing","label":"L1","wire_type":"Live"}`,
			wantStatus: http.StatusNotFound,
			wantErr:    true,
			errCode:    "NOT_FOUND",
		},
		{
			name:       "endpoint outside panel",
			body:       `{"panel_id":"p1","label":"L1","wire_type":"Live","source_slot_id":"foreign"}`,
			wantStatus: http.StatusBadRequest,
			wantErr:    true,
			errCode:    "BAD_REQUEST",
		},
		{
			name:       "missing label",
			body:       `{"panel_id":"p1","wire_type":"Live"}`,
			wantStatus: http.StatusBadRequest,
			wantErr:    true,
			errCode:    "VALIDATION_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodPost, "/api/wires", strings.NewReader(tt.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			err := h.Wires.HandleCreateWire(c)

			if tt.wantErr {
				apiErr, ok := err.(*APIError)
				if !ok {
					t.Fatalf("expected APIError, got %T", err)
				}
				if apiErr.Status != tt.wantStatus || apiErr.Code != tt.errCode {
					t.Errorf("expected %d/%s, got %d/%s", tt.wantStatus, tt.errCode, apiErr.Status, apiErr.Code)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}

			var wire models.Wire
			if err := json.Unmarshal(rec.Body.Bytes(), &wire); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if wire.ID == "" || wire.IsOrphaned {
				t.Errorf("unexpected wire: %+v", wire)
			}
		})
	}
}

func TestWireHandler_OrphanFilterAndRepoint(t *testing.T) {
	h, f := newTestDeps()
	f.SeedSpan("p1", 9, "meter", 4)
	wireID := f.AddWire("p1", f.SlotID("p1", 10), "")
	f.AddWire("p1", f.SlotID("p1", 1), "")
	e := echo.New()

	// Removing the meter orphans the first wire
	req := httptest.NewRequest(http.MethodDelete, "/api/slots/:slotId/device", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("slotId")
	c.SetParamValues(f.SlotID("p1", 9))
	if err := h.Slots.HandleRemoveDevice(c); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	// Only the orphaned wire shows up under the filter
	req = httptest.NewRequest(http.MethodGet, "/api/panels/:id/wires?orphaned=true", nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("p1")
	if err := h.Wires.HandleListPanelWires(c); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	var wires []models.Wire
	if err := json.Unmarshal(rec.Body.Bytes(), &wires); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(wires) != 1 || wires[0].ID != wireID {
		t.Fatalf("expected only wire %s orphaned, got %v", wireID, wires)
	}

	// Re-pointing the wire onto a live slot clears the flag
	body := `{"source_slot_id":"` + f.SlotID("p1", 5) + `"}`
	req = httptest.NewRequest(http.MethodPut, "/api/wires/:id", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(wireID)
	if err := h.Wires.HandleUpdateWire(c); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	var wire models.Wire
	if err := json.Unmarshal(rec.Body.Bytes(), &wire); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if wire.IsOrphaned {
		t.Error("expected re-pointed wire to drop the orphan flag")
	}

	// The filter is empty again
	req = httptest.NewRequest(http.MethodGet, "/api/panels/:id/wires?orphaned=true", nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("p1")
	if err := h.Wires.HandleListPanelWires(c); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	wires = nil
	if err := json.Unmarshal(rec.Body.Bytes(), &wires); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(wires) != 0 {
		t.Errorf("expected no orphaned wires, got %v", wires)
	}
}

func TestWireHandler_HandleDeleteWire(t *testing.T) {
	h, f := newTestDeps()
	wireID := f.AddWire("p1", f.SlotID("p1", 1), "")
	e := echo.New()

	del := func(id string) error {
		req := httptest.NewRequest(http.MethodDelete, "/api/wires/:id", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues(id)
		return h.Wires.HandleDeleteWire(c)
	}

	if err := del(wireID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := del(wireID)
	apiErr, ok := err.(*APIError)
	if !ok || apiErr.Status != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %v", err)
	}
}

func TestWireHandler_Standards(t *testing.T) {
	h, _ := newTestDeps()
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/api/wiring/standards/colors", nil)
	rec := httptest.NewRecorder()
	if err := h.Wires.HandleWireColorStandards(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var colors map[string]models.WireColorStandard
	if err := json.Unmarshal(rec.Body.Bytes(), &colors); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if got := colors["UK"][models.WireTypeEarth]; len(got) != 1 || got[0] != "Green/Yellow" {
		t.Errorf("unexpected earth colors: %v", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/wiring/standards/cross-sections", nil)
	rec = httptest.NewRecorder()
	if err := h.Wires.HandleCrossSectionStandards(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var sections map[string][]models.CrossSectionRating
	if err := json.Unmarshal(rec.Body.Bytes(), &sections); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(sections["domestic"]) != 8 {
		t.Errorf("expected 8 domestic ratings, got %d", len(sections["domestic"]))
	}
}
