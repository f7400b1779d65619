package dragdrop

import (
	"context"
	"errors"
	"testing"

	"github.com/dentboard/dentboard/pkg/slotgrid"
)

// testLayout: two 100px columns starting at x=0, grid top at y=50.
func testLayout() GridLayout {
	return GridLayout{
		Columns: []Column{
			{DentistID: "d1", Left: 0, Right: 100},
			{DentistID: "d2", Left: 100, Right: 200, OnVacation: true},
		},
		Top:      50,
		Geometry: slotgrid.DefaultGeometry,
		Hours:    slotgrid.DefaultWorkingHours,
	}
}

type mockMover struct {
	calls []MoveAppointment
	err   error
}

func (m *mockMover) Move(_ context.Context, id, dentistID, start string) error {
	m.calls = append(m.calls, MoveAppointment{AppointmentID: id, DentistID: dentistID, Slot: start})
	return m.err
}

type mockOpener struct{ opened []string }

func (m *mockOpener) Open(_ context.Context, id string) { m.opened = append(m.opened, id) }

type mockCreator struct{ cells []Cell }

func (m *mockCreator) CreateAt(_ context.Context, dentistID, slot string) {
	m.cells = append(m.cells, Cell{DentistID: dentistID, Slot: slot})
}

func countEffects[T Effect](effects []Effect) int {
	n := 0
	for _, e := range effects {
		if _, ok := e.(T); ok {
			n++
		}
	}
	return n
}

func press(id string, x, y float64) Press {
	return Press{AppointmentID: id, X: x, Y: y, BlockX: x - 10, BlockY: y - 4, DurationMinutes: 30}
}

func TestReduce_ClickOpensWithoutMove(t *testing.T) {
	s, eff := Reduce(State{}, press("a1", 20, 60), testLayout())
	if s.Phase != Pressed || len(eff) != 0 {
		t.Fatalf("press: phase=%v effects=%v", s.Phase, eff)
	}
	// Jitter inside the threshold on both axes.
	s, eff = Reduce(s, Move{X: 24, Y: 65}, testLayout())
	if s.Phase != Pressed || len(eff) != 0 {
		t.Fatalf("small move started a drag: phase=%v", s.Phase)
	}
	s, eff = Reduce(s, Release{X: 24, Y: 65}, testLayout())
	if s.Phase != Idle {
		t.Errorf("expected idle, got %v", s.Phase)
	}
	if countEffects[OpenAppointment](eff) != 1 || countEffects[MoveAppointment](eff) != 0 {
		t.Errorf("unexpected effects %v", eff)
	}
	if s.SuppressNextSlotClick {
		t.Error("click must not arm suppression")
	}
}

func TestReduce_ThresholdIsPerAxis(t *testing.T) {
	s, _ := Reduce(State{}, press("a1", 20, 60), nil)
	s, _ = Reduce(s, Move{X: 25, Y: 65}, nil)
	if s.Phase != Pressed {
		t.Fatalf("exactly the threshold should not drag, got %v", s.Phase)
	}
	s, eff := Reduce(s, Move{X: 20, Y: 65.5}, nil)
	if s.Phase != Dragging {
		t.Fatalf("expected dragging, got %v", s.Phase)
	}
	if countEffects[ShowGhost](eff) != 1 || countEffects[LockSelection](eff) != 1 {
		t.Errorf("expected ghost and selection lock, got %v", eff)
	}
}

func TestReduce_DragAndDropMovesOnce(t *testing.T) {
	layout := testLayout()
	s, _ := Reduce(State{}, press("a1", 20, 60), layout)
	s, _ = Reduce(s, Move{X: 40, Y: 120}, layout)
	s, eff := Reduce(s, Move{X: 150, Y: 200}, layout)
	if countEffects[MoveAppointment](eff) != 0 {
		t.Fatal("move emitted while dragging")
	}
	if countEffects[MoveGhost](eff) != 1 {
		t.Errorf("expected ghost follow, got %v", eff)
	}

	// y=50+42*4+1 is the 09:00 row; x=150 is d2 (on vacation, still a drop target).
	s, eff = Reduce(s, Release{X: 150, Y: 50 + 42*4 + 1}, layout)
	if countEffects[MoveAppointment](eff) != 1 {
		t.Fatalf("expected one move, got %v", eff)
	}
	for _, e := range eff {
		if m, ok := e.(MoveAppointment); ok {
			if m.AppointmentID != "a1" || m.DentistID != "d2" || m.Slot != "09:00" {
				t.Errorf("unexpected move %+v", m)
			}
		}
	}
	if countEffects[HideGhost](eff) != 1 || countEffects[UnlockSelection](eff) != 1 {
		t.Errorf("expected cleanup effects, got %v", eff)
	}
	if s.Phase != Idle || !s.SuppressNextSlotClick {
		t.Fatalf("expected idle with suppression, got %+v", s)
	}

	s, eff = Reduce(s, SlotClick{DentistID: "d1", Slot: "09:00"}, layout)
	if len(eff) != 0 {
		t.Errorf("synthetic click after drop must be swallowed, got %v", eff)
	}
	if s.SuppressNextSlotClick {
		t.Error("suppression must be consumed")
	}
	_, eff = Reduce(s, SlotClick{DentistID: "d1", Slot: "09:00"}, layout)
	if countEffects[CreateAtSlot](eff) != 1 {
		t.Errorf("second click should create, got %v", eff)
	}
}

func TestReduce_DropOutsideGrid(t *testing.T) {
	layout := testLayout()
	s, _ := Reduce(State{}, press("a1", 20, 60), layout)
	s, _ = Reduce(s, Move{X: 40, Y: 120}, layout)
	s, eff := Reduce(s, Release{X: 500, Y: 10}, layout)
	if countEffects[MoveAppointment](eff) != 0 {
		t.Errorf("drop outside grid must not move, got %v", eff)
	}
	if s.Phase != Idle || s.SuppressNextSlotClick {
		t.Fatalf("drop outside grid must leave a clean idle state, got %+v", s)
	}
	_, eff = Reduce(s, SlotClick{DentistID: "d1", Slot: "10:00"}, layout)
	if countEffects[CreateAtSlot](eff) != 1 {
		t.Errorf("next slot click after an off-grid drop should create, got %v", eff)
	}
}

func TestReduce_CancelDiscards(t *testing.T) {
	s, _ := Reduce(State{}, press("a1", 20, 60), nil)
	s, _ = Reduce(s, Move{X: 60, Y: 60}, nil)
	s, eff := Reduce(s, Cancel{}, nil)
	if s != (State{}) {
		t.Errorf("expected reset state, got %+v", s)
	}
	if countEffects[HideGhost](eff) != 1 || countEffects[MoveAppointment](eff) != 0 {
		t.Errorf("unexpected effects %v", eff)
	}
	_, eff = Reduce(s, Release{X: 60, Y: 60}, nil)
	if len(eff) != 0 {
		t.Errorf("release after cancel should do nothing, got %v", eff)
	}
}

func TestReduce_IgnoresNonPrimaryButton(t *testing.T) {
	p := press("a1", 20, 60)
	p.Button = 2
	s, _ := Reduce(State{}, p, nil)
	if s.Phase != Idle {
		t.Errorf("right click should be ignored, got %v", s.Phase)
	}

	p.Touch = true
	s, _ = Reduce(State{}, p, nil)
	if s.Phase != Pressed {
		t.Errorf("touch press should start tracking, got %v", s.Phase)
	}
}

func TestReduce_SingleGesture(t *testing.T) {
	s, _ := Reduce(State{}, press("a1", 20, 60), nil)
	s, _ = Reduce(s, press("a2", 30, 70), nil)
	if s.AppointmentID != "a1" {
		t.Errorf("second press must not replace the gesture, got %s", s.AppointmentID)
	}
}

func TestReduce_GhostKeepsGrabOffset(t *testing.T) {
	s, _ := Reduce(State{}, Press{AppointmentID: "a1", X: 30, Y: 80, BlockX: 10, BlockY: 70}, nil)
	s, eff := Reduce(s, Move{X: 130, Y: 180}, nil)
	for _, e := range eff {
		if g, ok := e.(ShowGhost); ok {
			if g.X != 110 || g.Y != 170 {
				t.Errorf("ghost at (%v,%v), want (110,170)", g.X, g.Y)
			}
			return
		}
	}
	t.Fatalf("no ghost shown: %v", eff)
}

func TestReduce_SlotClickOnVacationColumn(t *testing.T) {
	_, eff := Reduce(State{}, SlotClick{DentistID: "d2", Slot: "09:00"}, testLayout())
	if len(eff) != 0 {
		t.Errorf("creation on a vacation column should be blocked, got %v", eff)
	}
}

func TestGridLayout_HitTest(t *testing.T) {
	layout := testLayout()
	tests := []struct {
		name   string
		x, y   float64
		want   Cell
		wantOK bool
	}{
		{"first row", 10, 50, Cell{"d1", "07:00"}, true},
		{"second column", 150, 50 + 42, Cell{"d2", "07:30"}, true},
		{"above grid", 10, 49, Cell{}, false},
		{"past last row", 10, 50 + 42*24, Cell{}, false},
		{"right of columns", 200, 60, Cell{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := layout.HitTest(tt.x, tt.y)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("HitTest(%v,%v) = %+v,%v want %+v,%v", tt.x, tt.y, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestController_Dispatch(t *testing.T) {
	mover, opener, creator := &mockMover{}, &mockOpener{}, &mockCreator{}
	c := NewController(testLayout(), mover, opener, creator)
	ctx := context.Background()

	c.Dispatch(ctx, press("a1", 20, 60))
	c.Dispatch(ctx, Release{X: 20, Y: 60})
	if len(opener.opened) != 1 || len(mover.calls) != 0 {
		t.Fatalf("click: opened=%v moves=%v", opener.opened, mover.calls)
	}

	c.Dispatch(ctx, press("a1", 20, 60))
	c.Dispatch(ctx, Move{X: 20, Y: 100})
	if _, err := c.Dispatch(ctx, Release{X: 20, Y: 50 + 42*6}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mover.calls) != 1 || mover.calls[0].Slot != "10:00" || mover.calls[0].DentistID != "d1" {
		t.Fatalf("unexpected moves %+v", mover.calls)
	}

	c.Dispatch(ctx, SlotClick{DentistID: "d1", Slot: "10:00"})
	if len(creator.cells) != 0 {
		t.Fatalf("suppressed click reached creator: %v", creator.cells)
	}
	c.Dispatch(ctx, SlotClick{DentistID: "d1", Slot: "11:00"})
	if len(creator.cells) != 1 {
		t.Fatalf("expected one creation, got %v", creator.cells)
	}
}

func TestController_MoveErrorEndsGesture(t *testing.T) {
	mover := &mockMover{err: errors.New("boom")}
	c := NewController(testLayout(), mover, nil, nil)
	ctx := context.Background()

	c.Dispatch(ctx, press("a1", 20, 60))
	c.Dispatch(ctx, Move{X: 20, Y: 100})
	if _, err := c.Dispatch(ctx, Release{X: 20, Y: 100}); err == nil {
		t.Fatal("expected move error")
	}
	if c.State().Phase != Idle {
		t.Errorf("gesture must end after a failed move, got %v", c.State().Phase)
	}
}
