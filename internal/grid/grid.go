// Package grid models a panel's slot layout and answers placement
// questions. A View wraps a slot set that was already loaded from
// somewhere; nothing here touches storage, so the same code runs inside
// the server's write transactions and inside clients previewing a drag.
package grid

import (
	"errors"
	"fmt"
	"sort"

	"github.com/panel-configurator/backend/internal/models"
)

// Grid errors.
var (
	ErrInvalidSlotPosition = errors.New("slot number outside the panel grid")
	ErrInvalidSpanWidth    = errors.New("device template slots_required is below 1")
)

// View is a read-only snapshot of one panel's grid. Slots are held in
// slot-number order with their derived state filled in. Views are cheap
// to rebuild; callers wanting a newer picture construct a new one.
type View struct {
	rows        int
	slotsPerRow int
	slots       []models.Slot
	byNumber    map[int]int // slot number -> index into slots
}

// NewView builds a View over a panel's full slot set. The input slice is
// copied and may arrive in any order; every slot number 1..rows*slotsPerRow
// must be present exactly once.
func NewView(rows, slotsPerRow int, slots []models.Slot) (*View, error) {
	total := rows * slotsPerRow
	if len(slots) != total {
		return nil, fmt.Errorf("grid expects %d slots, got %d", total, len(slots))
	}

	v := &View{
		rows:        rows,
		slotsPerRow: slotsPerRow,
		slots:       make([]models.Slot, len(slots)),
		byNumber:    make(map[int]int, len(slots)),
	}
	copy(v.slots, slots)
	sort.Slice(v.slots, func(i, j int) bool {
		return v.slots[i].SlotNumber < v.slots[j].SlotNumber
	})

	for i := range v.slots {
		s := &v.slots[i]
		if s.SlotNumber < 1 || s.SlotNumber > total {
			return nil, fmt.Errorf("slot number %d outside grid of %d", s.SlotNumber, total)
		}
		if _, dup := v.byNumber[s.SlotNumber]; dup {
			return nil, fmt.Errorf("duplicate slot number %d", s.SlotNumber)
		}
		s.State = s.DeriveState()
		v.byNumber[s.SlotNumber] = i
	}
	return v, nil
}

// Rows returns the number of rows in the grid.
func (v *View) Rows() int { return v.rows }

// SlotsPerRow returns the number of slots in each row.
func (v *View) SlotsPerRow() int { return v.slotsPerRow }

// TotalSlots returns the number of slots in the grid.
func (v *View) TotalSlots() int { return v.rows * v.slotsPerRow }

// Slots returns the full slot set in slot-number order.
func (v *View) Slots() []models.Slot {
	out := make([]models.Slot, len(v.slots))
	copy(out, v.slots)
	return out
}

// SlotByNumber returns the slot with the given 1-based row-major number.
func (v *View) SlotByNumber(n int) (models.Slot, bool) {
	i, ok := v.byNumber[n]
	if !ok {
		return models.Slot{}, false
	}
	return v.slots[i], true
}

// SlotsInRow returns the slots of a 1-based row in column order.
func (v *View) SlotsInRow(row int) []models.Slot {
	if row < 1 || row > v.rows {
		return nil
	}
	start := (row - 1) * v.slotsPerRow
	out := make([]models.Slot, v.slotsPerRow)
	copy(out, v.slots[start:start+v.slotsPerRow])
	return out
}

// RowOf returns the 1-based row a slot number falls in.
func (v *View) RowOf(n int) int {
	return (n-1)/v.slotsPerRow + 1
}

// rowEnd returns the last slot number of the row containing n.
func (v *View) rowEnd(n int) int {
	return v.RowOf(n) * v.slotsPerRow
}

// AnchorOf resolves a slot number to the anchor whose span covers it.
// For an anchor slot that is the slot itself; for a blocked slot the row
// is scanned backwards to the owning anchor. Free slots resolve to nothing.
func (v *View) AnchorOf(n int) (models.Slot, bool) {
	s, ok := v.SlotByNumber(n)
	if !ok {
		return models.Slot{}, false
	}
	if s.IsAnchor() {
		return s, true
	}
	if !s.IsBlocked() {
		return models.Slot{}, false
	}

	rowStart := (v.RowOf(n)-1)*v.slotsPerRow + 1
	for m := n - 1; m >= rowStart; m-- {
		c, _ := v.SlotByNumber(m)
		if c.IsAnchor() {
			if c.SlotNumber+c.SpansSlots-1 >= n {
				return c, true
			}
			return models.Slot{}, false
		}
		if !c.IsBlocked() {
			return models.Slot{}, false
		}
	}
	return models.Slot{}, false
}

// SpanOf returns the slots covered by an anchor's span, in order. Only the
// anchor's own SpansSlots decides the width; the covered slots' values are
// not consulted.
func (v *View) SpanOf(anchor models.Slot) []models.Slot {
	span := make([]models.Slot, 0, anchor.SpansSlots)
	for m := anchor.SlotNumber; m < anchor.SlotNumber+anchor.SpansSlots; m++ {
		s, ok := v.SlotByNumber(m)
		if !ok {
			break
		}
		span = append(span, s)
	}
	return span
}

// FreeRunFrom counts the contiguous free slots starting at n, stopping at
// the first occupied slot or the end of the row. An occupied start yields 0.
func (v *View) FreeRunFrom(n int) int {
	end := v.rowEnd(n)
	run := 0
	for m := n; m <= end; m++ {
		s, ok := v.SlotByNumber(m)
		if !ok || s.IsOccupied {
			break
		}
		run++
	}
	return run
}
