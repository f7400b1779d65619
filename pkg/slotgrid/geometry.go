package slotgrid

import "time"

// Geometry holds the pixel constants of the board. Blocks, slot buttons and
// the now-line all derive their vertical position from RowOffset.
type Geometry struct {
	RowHeight      float64 `json:"row_height"`
	MinBlockHeight float64 `json:"min_block_height"`
}

// DefaultGeometry matches the board's 42px rows; blocks never render
// shorter than 24px so they stay clickable.
var DefaultGeometry = Geometry{RowHeight: 42, MinBlockHeight: 24}

// RowOffset returns the top offset of t relative to the start of the grid.
func (g Geometry) RowOffset(t string, wh WorkingHours) float64 {
	wh = wh.OrDefault()
	return float64(Minutes(t)-wh.Start*60) / SlotMinutes * g.RowHeight
}

// DurationHeight returns the block height for [start, end), clamped to
// MinBlockHeight.
func (g Geometry) DurationHeight(start, end string) float64 {
	h := float64(MinutesBetween(start, end)) / SlotMinutes * g.RowHeight
	if h < g.MinBlockHeight {
		return g.MinBlockHeight
	}
	return h
}

// GridHeight is the full height of one dentist column.
func (g Geometry) GridHeight(wh WorkingHours) float64 {
	return float64(len(GenerateSlots(wh))) * g.RowHeight
}

// SlotAtOffset is the inverse of RowOffset for slot rows: it returns the
// label of the row containing y.
func (g Geometry) SlotAtOffset(y float64, wh WorkingHours) (string, bool) {
	wh = wh.OrDefault()
	if g.RowHeight <= 0 || y < 0 || y >= g.GridHeight(wh) {
		return "", false
	}
	row := int(y / g.RowHeight)
	return FormatClock(wh.Start*60 + row*SlotMinutes), true
}

// NowLine returns the offset of the current-time indicator for the board
// showing dateKey. It is only visible on today's board within working hours.
func (g Geometry) NowLine(now time.Time, dateKey string, wh WorkingHours) (float64, bool) {
	wh = wh.OrDefault()
	if DateKey(now) != dateKey {
		return 0, false
	}
	nowMin := now.Hour()*60 + now.Minute()
	start, end := wh.Start*60, wh.End*60
	if nowMin < start || nowMin >= end {
		return 0, false
	}
	return float64(nowMin-start) / SlotMinutes * g.RowHeight, true
}
