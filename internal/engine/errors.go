package engine

import (
	"fmt"

	"github.com/panel-configurator/backend/internal/models"
)

// ValidationFailure reports a placement the occupancy rules rejected. The
// check carries the reason string shown to users verbatim, plus the span
// arithmetic behind it.
type ValidationFailure struct {
	Check models.PlacementCheck
}

func (e *ValidationFailure) Error() string {
	return e.Check.Reason
}

// NotFoundError reports a missing entity by kind and ID.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// NotConfigurableError reports a reconfigure attempt on a slot that holds
// no device reference. Blocked and free slots have no metadata to update.
type NotConfigurableError struct {
	SlotID string
	State  models.SlotState
}

func (e *NotConfigurableError) Error() string {
	return fmt.Sprintf("slot %s is %s, not a device anchor", e.SlotID, e.State)
}

// PersistenceFailure reports that storage misbehaved mid-operation. The
// transaction it interrupted rolled back, so no partial span write is
// visible and the caller may retry the whole operation.
type PersistenceFailure struct {
	Op  string
	Err error
}

func (e *PersistenceFailure) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceFailure) Unwrap() error { return e.Err }

// Retryable reports whether retrying the operation can succeed. Storage
// failures leave no partial state behind, so they always can.
func (e *PersistenceFailure) Retryable() bool { return true }
