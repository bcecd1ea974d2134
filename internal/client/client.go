// Package client implements the editor-side view of panel grids: an API
// client for the configurator backend plus a reconciler that renders
// optimistic previews and swaps in the server's authoritative slot sets.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/panel-configurator/backend/internal/models"
)

// SlotUpdate is the envelope slot mutations return: the authoritative
// post-commit slot set plus what a removal freed.
type SlotUpdate struct {
	PanelID       string        `json:"panel_id"`
	Slots         []models.Slot `json:"slots"`
	FreedSlotIDs  []string      `json:"freed_slot_ids"`
	OrphanedWires int           `json:"orphaned_wires"`
}

// APIRejection is the server's structured error body. Message carries the
// rejection reason verbatim; Check rides along on placement rejections.
type APIRejection struct {
	StatusCode int                    `json:"-"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details"`
	Retryable  bool                   `json:"retryable"`
	Check      *models.PlacementCheck `json:"check"`
}

func (e *APIRejection) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// APIClient wraps the configurator REST surface.
type APIClient struct {
	http *resty.Client
	log  *zap.Logger
}

// NewAPIClient creates a client against the given base URL.
func NewAPIClient(baseURL string, log *zap.Logger) *APIClient {
	if log == nil {
		log = zap.NewNop()
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(1 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	// Storage failures leave no partial state behind on the server, so
	// replaying the request is safe.
	httpClient.AddRetryCondition(func(r *resty.Response, err error) bool {
		return err != nil || r.StatusCode() == http.StatusServiceUnavailable
	})

	return &APIClient{http: httpClient, log: log}
}

// Panel fetches panel metadata with its full slot set.
func (c *APIClient) Panel(ctx context.Context, panelID string) (*models.Panel, error) {
	var (
		panel models.Panel
		rej   APIRejection
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&panel).
		SetError(&rej).
		Get("/api/panels/" + panelID)
	if err != nil {
		return nil, fmt.Errorf("fetch panel: %w", err)
	}
	if resp.IsError() {
		rej.StatusCode = resp.StatusCode()
		return nil, &rej
	}
	return &panel, nil
}

// PanelSlots fetches the compact msgpack grid snapshot.
func (c *APIClient) PanelSlots(ctx context.Context, panelID string) ([]models.Slot, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/x-msgpack").
		Get("/api/panels/" + panelID + "/slots/msgpack")
	if err != nil {
		return nil, fmt.Errorf("fetch slots: %w", err)
	}
	if resp.IsError() {
		return nil, c.rejectionFromBody(resp)
	}

	var snapshot struct {
		PanelID string        `json:"panel_id"`
		Slots   []models.Slot `json:"slots"`
	}
	dec := msgpack.NewDecoder(bytes.NewReader(resp.Body()))
	dec.SetCustomStructTag("json")
	if err := dec.Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("decode slot snapshot: %w", err)
	}
	return snapshot.Slots, nil
}

// DeviceTemplate fetches one device template from the catalog.
func (c *APIClient) DeviceTemplate(ctx context.Context, id string) (*models.DeviceTemplate, error) {
	var (
		tpl models.DeviceTemplate
		rej APIRejection
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&tpl).
		SetError(&rej).
		Get("/api/templates/devices/" + id)
	if err != nil {
		return nil, fmt.Errorf("fetch device template: %w", err)
	}
	if resp.IsError() {
		rej.StatusCode = resp.StatusCode()
		return nil, &rej
	}
	return &tpl, nil
}

// CheckPlacement asks the server whether a device could be anchored at a
// slot right now. The answer is advisory.
func (c *APIClient) CheckPlacement(ctx context.Context, slotID, deviceTemplateID string) (models.PlacementCheck, error) {
	var (
		check models.PlacementCheck
		rej   APIRejection
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&check).
		SetError(&rej).
		Get("/api/slots/" + slotID + "/can-place/" + deviceTemplateID)
	if err != nil {
		return models.PlacementCheck{}, fmt.Errorf("check placement: %w", err)
	}
	if resp.IsError() {
		rej.StatusCode = resp.StatusCode()
		return models.PlacementCheck{}, &rej
	}
	return check, nil
}

// PlaceDevice anchors a device template at a slot.
func (c *APIClient) PlaceDevice(ctx context.Context, slotID, deviceTemplateID string, label *string, setting *float64) (*SlotUpdate, error) {
	body := map[string]any{"device_template_id": deviceTemplateID}
	if label != nil {
		body["device_label"] = *label
	}
	if setting != nil {
		body["current_setting"] = *setting
	}

	var (
		update SlotUpdate
		rej    APIRejection
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&update).
		SetError(&rej).
		Put("/api/slots/" + slotID)
	if err != nil {
		return nil, fmt.Errorf("place device: %w", err)
	}
	if resp.IsError() {
		rej.StatusCode = resp.StatusCode()
		return nil, &rej
	}
	return &update, nil
}

// RemoveDevice frees the whole span covering a slot.
func (c *APIClient) RemoveDevice(ctx context.Context, slotID string) (*SlotUpdate, error) {
	var (
		update SlotUpdate
		rej    APIRejection
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&update).
		SetError(&rej).
		Delete("/api/slots/" + slotID + "/device")
	if err != nil {
		return nil, fmt.Errorf("remove device: %w", err)
	}
	if resp.IsError() {
		rej.StatusCode = resp.StatusCode()
		return nil, &rej
	}
	return &update, nil
}

// FeedURL derives the websocket change feed endpoint from the base URL.
func (c *APIClient) FeedURL() string {
	base := c.http.BaseURL
	if strings.HasPrefix(base, "https") {
		return "wss" + strings.TrimPrefix(base, "https") + "/api/ws/panels"
	}
	return "ws" + strings.TrimPrefix(base, "http") + "/api/ws/panels"
}

// rejectionFromBody parses an error body from a non-JSON endpoint.
func (c *APIClient) rejectionFromBody(resp *resty.Response) error {
	rej := &APIRejection{StatusCode: resp.StatusCode()}
	if err := json.Unmarshal(resp.Body(), rej); err != nil {
		return fmt.Errorf("request failed with status %d", resp.StatusCode())
	}
	return rej
}
