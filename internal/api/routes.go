// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"github.com/labstack/echo/v4"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store   Store
	Engine  Placer
	Hub     *Hub
	Version string
}

// Handlers holds all handler instances
type Handlers struct {
	Health    HealthHandler
	Panels    PanelHandler
	Slots     SlotHandler
	Templates TemplateHandler
	Wires     WireHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(deps.Version),
		Panels:    NewPanelHandler(deps.Store),
		Slots:     NewSlotHandler(deps.Engine, deps.Store, deps.Hub),
		Templates: NewTemplateHandler(deps.Store),
		Wires:     NewWireHandler(deps.Store),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	// Health check
	e.GET("/health", handlers.Health.HandleHealth)

	// Panel routes
	panelGroup := e.Group("/api/panels")
	panelGroup.GET("", handlers.Panels.HandleListPanels)
	panelGroup.POST("", handlers.Panels.HandleCreatePanel)
	panelGroup.GET("/:id", handlers.Panels.HandleGetPanel)
	panelGroup.PUT("/:id", handlers.Panels.HandleUpdatePanel)
	panelGroup.DELETE("/:id", handlers.Panels.HandleDeletePanel)
	panelGroup.GET("/:id/slots", handlers.Panels.HandleGetPanelSlots)
	panelGroup.GET("/:id/slots/msgpack", handlers.Panels.HandleGetPanelSlotsMsgpack)
	panelGroup.GET("/:id/wires", handlers.Wires.HandleListPanelWires)

	// Slot occupancy routes
	slotGroup := e.Group("/api/slots")
	slotGroup.GET("/:slotId", handlers.Slots.HandleGetSlot)
	slotGroup.PUT("/:slotId", handlers.Slots.HandleUpdateSlot)
	slotGroup.GET("/:slotId/can-place/:templateId", handlers.Slots.HandleCanPlace)
	slotGroup.DELETE("/:slotId/device", handlers.Slots.HandleRemoveDevice)

	// Template catalog routes
	templateGroup := e.Group("/api/templates")
	templateGroup.GET("/panels", handlers.Templates.HandleListPanelTemplates)
	templateGroup.GET("/panels/:id", handlers.Templates.HandleGetPanelTemplate)
	templateGroup.GET("/devices", handlers.Templates.HandleListDeviceTemplates)
	templateGroup.GET("/devices/:id", handlers.Templates.HandleGetDeviceTemplate)

	// Wiring routes
	wireGroup := e.Group("/api/wires")
	wireGroup.POST("", handlers.Wires.HandleCreateWire)
	wireGroup.GET("/:id", handlers.Wires.HandleGetWire)
	wireGroup.PUT("/:id", handlers.Wires.HandleUpdateWire)
	wireGroup.DELETE("/:id", handlers.Wires.HandleDeleteWire)

	// Standards lookups
	standardsGroup := e.Group("/api/wiring/standards")
	standardsGroup.GET("/colors", handlers.Wires.HandleWireColorStandards)
	standardsGroup.GET("/cross-sections", handlers.Wires.HandleCrossSectionStandards)
}

// RegisterWebSocketRoutes registers the change feed endpoint
func RegisterWebSocketRoutes(e *echo.Echo, hub *Hub) {
	e.GET("/api/ws/panels", hub.HandleWebSocket)
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo) {
	// Use custom error handler
	e.HTTPErrorHandler = ErrorHandler
}
