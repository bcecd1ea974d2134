// handlers_wiring.go - Wiring CRUD and standards lookup handlers
package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/panel-configurator/backend/internal/models"
	"github.com/panel-configurator/backend/internal/store"
)

// WireHandlerImpl implements the WireHandler interface
type WireHandlerImpl struct {
	store Store
}

// NewWireHandler creates a new wire handler instance
func NewWireHandler(store Store) WireHandler {
	return &WireHandlerImpl{
		store: store,
	}
}

// HandleListPanelWires returns a panel's wires, optionally only the
// orphaned ones (?orphaned=true)
func (h *WireHandlerImpl) HandleListPanelWires(c echo.Context) error {
	panelID := c.Param("id")
	ctx := c.Request().Context()

	panel, err := h.store.GetPanel(ctx, panelID)
	if err != nil {
		return NewInternalError("failed to load panel", err)
	}
	if panel == nil {
		return NewNotFoundError("panel", panelID)
	}

	wires, err := h.store.ListWires(ctx, panelID, c.QueryParam("orphaned") == "true")
	if err != nil {
		return NewInternalError("failed to list wires", err)
	}
	if wires == nil {
		wires = []models.Wire{}
	}
	return c.JSON(http.StatusOK, wires)
}

// HandleGetWire returns one wire
func (h *WireHandlerImpl) HandleGetWire(c echo.Context) error {
	id := c.Param("id")
	wire, err := h.store.GetWire(c.Request().Context(), id)
	if err != nil {
		return NewInternalError("failed to load wire", err)
	}
	if wire == nil {
		return NewNotFoundError("wire", id)
	}
	return c.JSON(http.StatusOK, wire)
}

// HandleCreateWire registers a wire connection. Endpoint slots must belong
// to the wire's panel; either endpoint may instead be an external label.
func (h *WireHandlerImpl) HandleCreateWire(c echo.Context) error {
	var req createWireRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}

	wire, err := h.store.CreateWire(c.Request().Context(), &models.Wire{
		PanelID:             req.PanelID,
		Label:               req.Label,
		WireType:            models.WireType(req.WireType),
		CrossSection:        req.CrossSection,
		Color:               req.Color,
		SourceSlotID:        req.SourceSlotID,
		DestinationSlotID:   req.DestinationSlotID,
		ExternalSource:      req.ExternalSource,
		ExternalDestination: req.ExternalDestination,
		Length:              req.Length,
	})
	if err != nil {
		return wireStoreError(err)
	}
	return c.JSON(http.StatusCreated, wire)
}

// HandleUpdateWire updates wire fields. Re-pointing either endpoint clears
// the orphaned flag; an endpoint set to the empty string becomes external.
func (h *WireHandlerImpl) HandleUpdateWire(c echo.Context) error {
	id := c.Param("id")

	var req updateWireRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	wire, err := h.store.UpdateWire(c.Request().Context(), id, store.WireUpdate{
		Label:               req.Label,
		WireType:            req.WireType,
		CrossSection:        req.CrossSection,
		Color:               req.Color,
		SourceSlotID:        req.SourceSlotID,
		DestinationSlotID:   req.DestinationSlotID,
		ExternalSource:      req.ExternalSource,
		ExternalDestination: req.ExternalDestination,
		Length:              req.Length,
	})
	if err != nil {
		return wireStoreError(err)
	}
	return c.JSON(http.StatusOK, wire)
}

// HandleDeleteWire deletes a wire permanently
func (h *WireHandlerImpl) HandleDeleteWire(c echo.Context) error {
	id := c.Param("id")
	ok, err := h.store.DeleteWire(c.Request().Context(), id)
	if err != nil {
		return NewInternalError("failed to delete wire", err)
	}
	if !ok {
		return NewNotFoundError("wire", id)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleWireColorStandards returns conventional conductor colors per wire
// type and region. Informational only; nothing validates against it.
func (h *WireHandlerImpl) HandleWireColorStandards(c echo.Context) error {
	standards := map[string]models.WireColorStandard{
		"UK": {
			models.WireTypeLive:         {"Brown", "Black", "Grey"},
			models.WireTypeNeutral:      {"Blue"},
			models.WireTypeEarth:        {"Green/Yellow"},
			models.WireTypeSwitchedLive: {"Brown", "Black", "Grey"},
		},
		"EU": {
			models.WireTypeLive:         {"Brown", "Black", "Grey"},
			models.WireTypeNeutral:      {"Blue"},
			models.WireTypeEarth:        {"Green/Yellow"},
			models.WireTypeSwitchedLive: {"Brown", "Black", "Grey"},
		},
	}
	return c.JSON(http.StatusOK, standards)
}

// HandleCrossSectionStandards returns conventional conductor cross-sections
// per circuit current
func (h *WireHandlerImpl) HandleCrossSectionStandards(c echo.Context) error {
	standards := map[string][]models.CrossSectionRating{
		"domestic": {
			{Current: "6A", CrossSection: 1.0, TypicalUse: "Lighting circuits"},
			{Current: "10A", CrossSection: 1.5, TypicalUse: "Lighting circuits"},
			{Current: "16A", CrossSection: 2.5, TypicalUse: "Socket outlets"},
			{Current: "20A", CrossSection: 2.5, TypicalUse: "Socket outlets, small appliances"},
			{Current: "25A", CrossSection: 4.0, TypicalUse: "Kitchen appliances"},
			{Current: "32A", CrossSection: 6.0, TypicalUse: "Cooker, large appliances"},
			{Current: "40A", CrossSection: 10.0, TypicalUse: "Electric shower, main feeds"},
			{Current: "50A", CrossSection: 16.0, TypicalUse: "Main incoming supply"},
		},
	}
	return c.JSON(http.StatusOK, standards)
}

// wireStoreError maps the wire store's sentinel errors onto API errors
func wireStoreError(err error) *APIError {
	switch {
	case errors.Is(err, store.ErrPanelNotFound):
		return &APIError{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: err.Error()}
	case errors.Is(err, store.ErrWireNotFound):
		return &APIError{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: err.Error()}
	case errors.Is(err, store.ErrSlotNotInPanel):
		return NewBadRequestError(err.Error(), nil)
	default:
		return NewInternalError("wire operation failed", err)
	}
}

// Request types

type createWireRequest struct {
	PanelID             string   `json:"panel_id"`
	Label               string   `json:"label"`
	WireType            string   `json:"wire_type"`
	CrossSection        float64  `json:"cross_section"`
	Color               string   `json:"color"`
	SourceSlotID        *string  `json:"source_slot_id"`
	DestinationSlotID   *string  `json:"destination_slot_id"`
	ExternalSource      string   `json:"external_source"`
	ExternalDestination string   `json:"external_destination"`
	Length              *float64 `json:"length"`
}

func (r *createWireRequest) validate() error {
	if r.PanelID == "" {
		return NewValidationError("panel_id")
	}
	if r.Label == "" {
		return NewValidationError("label")
	}
	if r.WireType == "" {
		return NewValidationError("wire_type")
	}
	return nil
}

type updateWireRequest struct {
	Label               *string          `json:"label"`
	WireType            *models.WireType `json:"wire_type"`
	CrossSection        *float64         `json:"cross_section"`
	Color               *string          `json:"color"`
	SourceSlotID        *string          `json:"source_slot_id"`
	DestinationSlotID   *string          `json:"destination_slot_id"`
	ExternalSource      *string          `json:"external_source"`
	ExternalDestination *string          `json:"external_destination"`
	Length              *float64         `json:"length"`
}
