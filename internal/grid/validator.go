package grid

import "github.com/panel-configurator/backend/internal/models"

// Rejection reasons reported by CanPlace. Clients display these verbatim,
// so the wording is part of the API.
const (
	ReasonTemplateNotFound  = "template not found"
	ReasonSlotOccupied      = "slot occupied"
	ReasonInsufficientSlots = "insufficient contiguous slots in row"
	ReasonOverlapsDevice    = "overlaps existing device"
)

// CanPlace decides whether a device template can be anchored at the given
// slot number. The anchor is taken exactly as requested; a rejected anchor
// is never shifted to a nearby free run. The checks run in a fixed order
// and the first failure wins:
//
//  1. the template must exist (callers pass nil for an unknown id)
//  2. the anchor slot must be free
//  3. the span must fit between the anchor and the end of its row
//  4. every covered slot must be free
//
// AvailableSlots always reports the contiguous free run starting at the
// anchor, so an overlap rejection tells the caller how much room there is.
//
// A template with SlotsRequired below 1 is a catalog defect, not a
// placement rejection, and surfaces as ErrInvalidSpanWidth.
func (v *View) CanPlace(slotNumber int, tpl *models.DeviceTemplate) (models.PlacementCheck, error) {
	slot, ok := v.SlotByNumber(slotNumber)
	if !ok {
		return models.PlacementCheck{}, ErrInvalidSlotPosition
	}

	if tpl == nil {
		return models.PlacementCheck{
			Reason:         ReasonTemplateNotFound,
			AvailableSlots: v.FreeRunFrom(slotNumber),
		}, nil
	}
	if tpl.SlotsRequired < 1 {
		return models.PlacementCheck{}, ErrInvalidSpanWidth
	}

	required := tpl.SlotsRequired
	available := v.FreeRunFrom(slotNumber)

	if slot.IsOccupied {
		return models.PlacementCheck{
			Reason:         ReasonSlotOccupied,
			RequiredSlots:  required,
			AvailableSlots: available,
		}, nil
	}

	if slot.Column+required-1 > v.slotsPerRow {
		return models.PlacementCheck{
			Reason:         ReasonInsufficientSlots,
			RequiredSlots:  required,
			AvailableSlots: available,
		}, nil
	}

	if available < required {
		return models.PlacementCheck{
			Reason:         ReasonOverlapsDevice,
			RequiredSlots:  required,
			AvailableSlots: available,
		}, nil
	}

	return models.PlacementCheck{
		CanPlace:       true,
		RequiredSlots:  required,
		AvailableSlots: available,
	}, nil
}
