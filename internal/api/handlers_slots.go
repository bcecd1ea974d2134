// handlers_slots.go - Slot occupancy operation handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/panel-configurator/backend/internal/engine"
	"github.com/panel-configurator/backend/internal/models"
)

// SlotHandlerImpl implements the SlotHandler interface
type SlotHandlerImpl struct {
	engine Placer
	store  Store
	hub    *Hub
}

// NewSlotHandler creates a new slot handler instance
func NewSlotHandler(placer Placer, store Store, hub *Hub) SlotHandler {
	return &SlotHandlerImpl{
		engine: placer,
		store:  store,
		hub:    hub,
	}
}

// HandleGetSlot returns one slot with its derived occupancy state
func (h *SlotHandlerImpl) HandleGetSlot(c echo.Context) error {
	slotID := c.Param("slotId")
	ctx := c.Request().Context()

	panel, err := h.store.SlotPanel(ctx, slotID)
	if err != nil {
		return NewInternalError("failed to resolve slot", err)
	}
	if panel == nil {
		return NewNotFoundError("slot", slotID)
	}

	slots, err := h.store.PanelSlots(ctx, panel.ID)
	if err != nil {
		return NewInternalError("failed to read slots", err)
	}
	for i := range slots {
		if slots[i].ID == slotID {
			slots[i].State = slots[i].DeriveState()
			return c.JSON(http.StatusOK, slots[i])
		}
	}
	return NewNotFoundError("slot", slotID)
}

// HandleUpdateSlot places a device into a slot or clears it. A null
// device_template_id clears the whole span covering the slot; a non-null
// one anchors the device there, which the occupancy rules may reject.
func (h *SlotHandlerImpl) HandleUpdateSlot(c echo.Context) error {
	slotID := c.Param("slotId")

	var req updateSlotRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	ctx := c.Request().Context()
	var (
		result *engine.Result
		err    error
	)
	if req.DeviceTemplateID == nil {
		result, err = h.engine.Remove(ctx, slotID)
	} else {
		result, err = h.engine.Place(ctx, engine.PlaceRequest{
			SlotID:           slotID,
			DeviceTemplateID: *req.DeviceTemplateID,
			DeviceLabel:      req.DeviceLabel,
			CurrentSetting:   req.CurrentSetting,
		})
	}
	if err != nil {
		return engineError(err)
	}

	h.broadcast(result)
	return c.JSON(http.StatusOK, newSlotUpdateResponse(result))
}

// HandleCanPlace answers a placement dry-run. The response is always 200;
// a rejected placement is a valid answer, not an error.
func (h *SlotHandlerImpl) HandleCanPlace(c echo.Context) error {
	check, err := h.engine.CanPlace(c.Request().Context(), c.Param("slotId"), c.Param("templateId"))
	if err != nil {
		return engineError(err)
	}
	return c.JSON(http.StatusOK, check)
}

// HandleRemoveDevice frees the whole span covering a slot. Removing from a
// slot that is already free succeeds with an empty freed_slot_ids list.
func (h *SlotHandlerImpl) HandleRemoveDevice(c echo.Context) error {
	result, err := h.engine.Remove(c.Request().Context(), c.Param("slotId"))
	if err != nil {
		return engineError(err)
	}

	if len(result.FreedSlotIDs) > 0 {
		h.broadcast(result)
	}
	return c.JSON(http.StatusOK, newSlotUpdateResponse(result))
}

func (h *SlotHandlerImpl) broadcast(result *engine.Result) {
	if h.hub == nil {
		return
	}
	h.hub.BroadcastPanelUpdated(result.PanelID, result.Slots)
}

// Request types

type updateSlotRequest struct {
	DeviceTemplateID *string  `json:"device_template_id"`
	DeviceLabel      *string  `json:"device_label"`
	CurrentSetting   *float64 `json:"current_setting"`
}

// Response types

// slotUpdateResponse is the envelope every slot mutation returns: the
// panel's full slot set after commit, plus what a removal freed.
type slotUpdateResponse struct {
	PanelID       string        `json:"panel_id"`
	Slots         []models.Slot `json:"slots"`
	FreedSlotIDs  []string      `json:"freed_slot_ids,omitempty"`
	OrphanedWires int           `json:"orphaned_wires,omitempty"`
}

func newSlotUpdateResponse(r *engine.Result) slotUpdateResponse {
	return slotUpdateResponse{
		PanelID:       r.PanelID,
		Slots:         r.Slots,
		FreedSlotIDs:  r.FreedSlotIDs,
		OrphanedWires: r.OrphanedWires,
	}
}
