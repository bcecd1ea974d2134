// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/panel-configurator/backend/internal/engine"
	"github.com/panel-configurator/backend/internal/models"
	"github.com/panel-configurator/backend/internal/store"
)

// SlotHandler handles slot occupancy operations
type SlotHandler interface {
	HandleGetSlot(c echo.Context) error
	HandleUpdateSlot(c echo.Context) error
	HandleCanPlace(c echo.Context) error
	HandleRemoveDevice(c echo.Context) error
}

// PanelHandler handles panel CRUD and grid snapshot operations
type PanelHandler interface {
	HandleListPanels(c echo.Context) error
	HandleCreatePanel(c echo.Context) error
	HandleGetPanel(c echo.Context) error
	HandleUpdatePanel(c echo.Context) error
	HandleDeletePanel(c echo.Context) error
	HandleGetPanelSlots(c echo.Context) error
	HandleGetPanelSlotsMsgpack(c echo.Context) error
}

// TemplateHandler handles the template catalog read surface
type TemplateHandler interface {
	HandleListPanelTemplates(c echo.Context) error
	HandleGetPanelTemplate(c echo.Context) error
	HandleListDeviceTemplates(c echo.Context) error
	HandleGetDeviceTemplate(c echo.Context) error
}

// WireHandler handles wiring CRUD and standards lookups
type WireHandler interface {
	HandleListPanelWires(c echo.Context) error
	HandleGetWire(c echo.Context) error
	HandleCreateWire(c echo.Context) error
	HandleUpdateWire(c echo.Context) error
	HandleDeleteWire(c echo.Context) error
	HandleWireColorStandards(c echo.Context) error
	HandleCrossSectionStandards(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// Placer runs placement operations. Satisfied by *engine.Executor;
// declared here so handler tests can drive the executor over a fake store.
// Reconfiguring a placed device goes through Place with the same template,
// so the handlers never need more than these three.
type Placer interface {
	CanPlace(ctx context.Context, slotID, deviceTemplateID string) (models.PlacementCheck, error)
	Place(ctx context.Context, req engine.PlaceRequest) (*engine.Result, error)
	Remove(ctx context.Context, slotID string) (*engine.Result, error)
}

// Store defines the persistence surface the handlers use outside the
// placement transaction. Both the SQLite store and the in-memory test
// store implement it.
type Store interface {
	CreatePanel(ctx context.Context, tpl *models.PanelTemplate, name, description string) (*models.Panel, error)
	GetPanel(ctx context.Context, id string) (*models.Panel, error)
	ListPanels(ctx context.Context) ([]models.Panel, error)
	UpdatePanelMeta(ctx context.Context, id string, name, description *string) (*models.Panel, error)
	DeletePanel(ctx context.Context, id string) (bool, error)

	SlotPanel(ctx context.Context, slotID string) (*models.Panel, error)
	PanelSlots(ctx context.Context, panelID string) ([]models.Slot, error)

	ListPanelTemplates(ctx context.Context, f store.TemplateFilter) ([]models.PanelTemplate, error)
	GetPanelTemplate(ctx context.Context, id string) (*models.PanelTemplate, error)
	ListDeviceTemplates(ctx context.Context, f store.TemplateFilter) ([]models.DeviceTemplate, error)
	GetDeviceTemplate(ctx context.Context, id string) (*models.DeviceTemplate, error)

	ListWires(ctx context.Context, panelID string, orphanedOnly bool) ([]models.Wire, error)
	GetWire(ctx context.Context, id string) (*models.Wire, error)
	CreateWire(ctx context.Context, w *models.Wire) (*models.Wire, error)
	UpdateWire(ctx context.Context, id string, upd store.WireUpdate) (*models.Wire, error)
	DeleteWire(ctx context.Context, id string) (bool, error)
}

var (
	_ Placer = (*engine.Executor)(nil)
	_ Store  = (*store.Store)(nil)
)
