// handlers_templates.go - Template catalog read handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/panel-configurator/backend/internal/models"
	"github.com/panel-configurator/backend/internal/store"
)

// TemplateHandlerImpl implements the TemplateHandler interface
type TemplateHandlerImpl struct {
	store Store
}

// NewTemplateHandler creates a new template handler instance
func NewTemplateHandler(store Store) TemplateHandler {
	return &TemplateHandlerImpl{
		store: store,
	}
}

// HandleListPanelTemplates returns panel templates, filterable by
// manufacturer, series and category; active only unless include_inactive
func (h *TemplateHandlerImpl) HandleListPanelTemplates(c echo.Context) error {
	templates, err := h.store.ListPanelTemplates(c.Request().Context(), filterFromQuery(c))
	if err != nil {
		return NewInternalError("failed to list panel templates", err)
	}
	if templates == nil {
		templates = []models.PanelTemplate{}
	}
	return c.JSON(http.StatusOK, templates)
}

// HandleGetPanelTemplate returns one panel template
func (h *TemplateHandlerImpl) HandleGetPanelTemplate(c echo.Context) error {
	id := c.Param("id")
	tpl, err := h.store.GetPanelTemplate(c.Request().Context(), id)
	if err != nil {
		return NewInternalError("failed to load panel template", err)
	}
	if tpl == nil {
		return NewNotFoundError("panel template", id)
	}
	return c.JSON(http.StatusOK, tpl)
}

// HandleListDeviceTemplates returns device templates with the same filters
func (h *TemplateHandlerImpl) HandleListDeviceTemplates(c echo.Context) error {
	templates, err := h.store.ListDeviceTemplates(c.Request().Context(), filterFromQuery(c))
	if err != nil {
		return NewInternalError("failed to list device templates", err)
	}
	if templates == nil {
		templates = []models.DeviceTemplate{}
	}
	return c.JSON(http.StatusOK, templates)
}

// HandleGetDeviceTemplate returns one device template
func (h *TemplateHandlerImpl) HandleGetDeviceTemplate(c echo.Context) error {
	id := c.Param("id")
	tpl, err := h.store.GetDeviceTemplate(c.Request().Context(), id)
	if err != nil {
		return NewInternalError("failed to load device template", err)
	}
	if tpl == nil {
		return NewNotFoundError("device template", id)
	}
	return c.JSON(http.StatusOK, tpl)
}

func filterFromQuery(c echo.Context) store.TemplateFilter {
	return store.TemplateFilter{
		Manufacturer:    c.QueryParam("manufacturer"),
		Series:          c.QueryParam("series"),
		Category:        c.QueryParam("category"),
		IncludeInactive: c.QueryParam("include_inactive") == "true",
	}
}
