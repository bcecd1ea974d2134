// handlers_panels.go - Panel CRUD and grid snapshot handlers
package api

import (
	"bytes"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/panel-configurator/backend/internal/models"
)

const msgpackContentType = "application/x-msgpack"

// PanelHandlerImpl implements the PanelHandler interface
type PanelHandlerImpl struct {
	store Store
}

// NewPanelHandler creates a new panel handler instance
func NewPanelHandler(store Store) PanelHandler {
	return &PanelHandlerImpl{
		store: store,
	}
}

// HandleListPanels returns all panels without their slot sets
func (h *PanelHandlerImpl) HandleListPanels(c echo.Context) error {
	panels, err := h.store.ListPanels(c.Request().Context())
	if err != nil {
		return NewInternalError("failed to list panels", err)
	}
	if panels == nil {
		panels = []models.Panel{}
	}
	return c.JSON(http.StatusOK, panels)
}

// HandleCreatePanel creates a panel from a panel template and seeds its
// full slot grid
func (h *PanelHandlerImpl) HandleCreatePanel(c echo.Context) error {
	var req createPanelRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}

	ctx := c.Request().Context()
	tpl, err := h.store.GetPanelTemplate(ctx, req.TemplateID)
	if err != nil {
		return NewInternalError("failed to load panel template", err)
	}
	if tpl == nil {
		return NewNotFoundError("panel template", req.TemplateID)
	}

	panel, err := h.store.CreatePanel(ctx, tpl, req.Name, req.Description)
	if err != nil {
		return NewInternalError("failed to create panel", err)
	}
	return c.JSON(http.StatusCreated, panel)
}

// HandleGetPanel returns one panel with its full slot set
func (h *PanelHandlerImpl) HandleGetPanel(c echo.Context) error {
	id := c.Param("id")
	ctx := c.Request().Context()

	panel, err := h.store.GetPanel(ctx, id)
	if err != nil {
		return NewInternalError("failed to load panel", err)
	}
	if panel == nil {
		return NewNotFoundError("panel", id)
	}

	if panel.Slots, err = h.panelSlots(c, panel.ID); err != nil {
		return NewInternalError("failed to read slots", err)
	}
	return c.JSON(http.StatusOK, panel)
}

// HandleUpdatePanel updates panel name and description. The grid shape is
// fixed at creation and cannot be changed here.
func (h *PanelHandlerImpl) HandleUpdatePanel(c echo.Context) error {
	id := c.Param("id")

	var req updatePanelRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.Name == nil && req.Description == nil {
		return NewValidationError("name")
	}

	panel, err := h.store.UpdatePanelMeta(c.Request().Context(), id, req.Name, req.Description)
	if err != nil {
		return NewInternalError("failed to update panel", err)
	}
	if panel == nil {
		return NewNotFoundError("panel", id)
	}
	return c.JSON(http.StatusOK, panel)
}

// HandleDeletePanel removes a panel with its slots and wires
func (h *PanelHandlerImpl) HandleDeletePanel(c echo.Context) error {
	id := c.Param("id")

	ok, err := h.store.DeletePanel(c.Request().Context(), id)
	if err != nil {
		return NewInternalError("failed to delete panel", err)
	}
	if !ok {
		return NewNotFoundError("panel", id)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleGetPanelSlots returns a panel's slot set as JSON
func (h *PanelHandlerImpl) HandleGetPanelSlots(c echo.Context) error {
	id := c.Param("id")
	slots, err := h.panelSlots(c, id)
	if err != nil {
		return NewInternalError("failed to read slots", err)
	}
	if slots == nil {
		return NewNotFoundError("panel", id)
	}
	return c.JSON(http.StatusOK, slotListResponse{PanelID: id, Slots: slots})
}

// HandleGetPanelSlotsMsgpack returns a panel's slot set as msgpack. The
// client reconciler uses this for its authoritative refresh path; field
// names match the JSON endpoint.
func (h *PanelHandlerImpl) HandleGetPanelSlotsMsgpack(c echo.Context) error {
	id := c.Param("id")
	slots, err := h.panelSlots(c, id)
	if err != nil {
		return NewInternalError("failed to read slots", err)
	}
	if slots == nil {
		return NewNotFoundError("panel", id)
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(slotListResponse{PanelID: id, Slots: slots}); err != nil {
		return NewInternalError("failed to encode slots", err)
	}
	return c.Blob(http.StatusOK, msgpackContentType, buf.Bytes())
}

// panelSlots loads a panel's slot set with derived states, or nil when the
// panel does not exist.
func (h *PanelHandlerImpl) panelSlots(c echo.Context, panelID string) ([]models.Slot, error) {
	ctx := c.Request().Context()
	panel, err := h.store.GetPanel(ctx, panelID)
	if err != nil || panel == nil {
		return nil, err
	}
	slots, err := h.store.PanelSlots(ctx, panelID)
	if err != nil {
		return nil, err
	}
	if slots == nil {
		slots = []models.Slot{}
	}
	for i := range slots {
		slots[i].State = slots[i].DeriveState()
	}
	return slots, nil
}

// Request types

type createPanelRequest struct {
	TemplateID  string `json:"template_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (r *createPanelRequest) validate() error {
	if r.TemplateID == "" {
		return NewValidationError("template_id")
	}
	if r.Name == "" {
		return NewValidationError("name")
	}
	return nil
}

type updatePanelRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// Response types

type slotListResponse struct {
	PanelID string        `json:"panel_id"`
	Slots   []models.Slot `json:"slots"`
}
