package dragdrop

import "github.com/dentboard/dentboard/pkg/slotgrid"

// Column is one dentist's column on screen, spanning [Left, Right).
type Column struct {
	DentistID  string  `json:"dentist_id"`
	Left       float64 `json:"left"`
	Right      float64 `json:"right"`
	OnVacation bool    `json:"on_vacation"`
}

// GridLayout is the board as the browser rendered it. Top is the y of the
// first slot row.
type GridLayout struct {
	Columns  []Column              `json:"columns"`
	Top      float64               `json:"top"`
	Geometry slotgrid.Geometry     `json:"geometry"`
	Hours    slotgrid.WorkingHours `json:"hours"`
}

// HitTest finds the cell under (x, y). Vacation columns still accept drops.
func (g GridLayout) HitTest(x, y float64) (Cell, bool) {
	geo := g.Geometry
	if geo.RowHeight <= 0 {
		geo = slotgrid.DefaultGeometry
	}
	for _, col := range g.Columns {
		if x < col.Left || x >= col.Right {
			continue
		}
		slot, ok := geo.SlotAtOffset(y-g.Top, g.Hours.OrDefault())
		if !ok {
			return Cell{}, false
		}
		return Cell{DentistID: col.DentistID, Slot: slot}, true
	}
	return Cell{}, false
}

// CreationAllowed is false for a column whose dentist is on vacation.
func (g GridLayout) CreationAllowed(dentistID string) bool {
	for _, col := range g.Columns {
		if col.DentistID == dentistID {
			return !col.OnVacation
		}
	}
	return true
}
