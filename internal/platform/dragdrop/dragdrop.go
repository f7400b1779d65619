// Package dragdrop turns pointer gestures on appointment blocks into move
// commands. The state machine is a pure reducer over an explicit State value
// so it can run, and be tested, without any renderer.
package dragdrop

import (
	"context"
	"math"
	"sync"
)

// DragThreshold is how far, in pixels along either axis, the pointer must
// travel before a press becomes a drag.
const DragThreshold = 5.0

// Phase of the single tracked gesture.
type Phase int

const (
	Idle Phase = iota
	Pressed
	Dragging
)

func (p Phase) String() string {
	switch p {
	case Pressed:
		return "pressed"
	case Dragging:
		return "dragging"
	}
	return "idle"
}

// State is the whole controller state. The zero value is Idle with no
// pending click suppression.
type State struct {
	Phase           Phase
	AppointmentID   string
	OriginX         float64
	OriginY         float64
	X               float64
	Y               float64
	GrabOffsetX     float64
	GrabOffsetY     float64
	DurationMinutes int
	HasMoved        bool
	// SuppressNextSlotClick swallows the click a browser synthesizes on the
	// grid cell under a drop.
	SuppressNextSlotClick bool
}

// GhostPosition is where the floating copy of the block is drawn: the
// pointer minus the grab offset, so the grab point stays under the cursor.
func (s State) GhostPosition() (x, y float64) {
	return s.X - s.GrabOffsetX, s.Y - s.GrabOffsetY
}

// Event is a pointer or grid input.
type Event interface{ event() }

// Press is a pointer going down on an appointment block. BlockX and BlockY
// are the block's top-left corner in the same coordinates as X and Y.
type Press struct {
	AppointmentID   string
	X, Y            float64
	BlockX, BlockY  float64
	DurationMinutes int
	Button          int
	Touch           bool
}

type Move struct{ X, Y float64 }

type Release struct{ X, Y float64 }

// Cancel is the browser interrupting the gesture.
type Cancel struct{}

// SlotClick is a click on an empty grid cell.
type SlotClick struct{ DentistID, Slot string }

func (Press) event()     {}
func (Move) event()      {}
func (Release) event()   {}
func (Cancel) event()    {}
func (SlotClick) event() {}

// Cell is one grid cell.
type Cell struct {
	DentistID string `json:"dentist_id"`
	Slot      string `json:"slot"`
}

// HitTester maps a point to the grid cell under it.
type HitTester interface {
	HitTest(x, y float64) (Cell, bool)
}

// creationGate is implemented by layouts that block creating appointments in
// some columns.
type creationGate interface {
	CreationAllowed(dentistID string) bool
}

// Effect is an output of the reducer for the caller to carry out.
type Effect interface{ effect() }

type ShowGhost struct {
	AppointmentID string
	X, Y          float64
}

type MoveGhost struct{ X, Y float64 }

type HideGhost struct{}

// LockSelection disables text selection and touch scrolling for the drag.
type LockSelection struct{}

type UnlockSelection struct{}

type OpenAppointment struct{ AppointmentID string }

type MoveAppointment struct {
	AppointmentID string
	DentistID     string
	Slot          string
}

type CreateAtSlot struct{ DentistID, Slot string }

func (ShowGhost) effect()       {}
func (MoveGhost) effect()       {}
func (HideGhost) effect()       {}
func (LockSelection) effect()   {}
func (UnlockSelection) effect() {}
func (OpenAppointment) effect() {}
func (MoveAppointment) effect() {}
func (CreateAtSlot) effect()    {}

// Reduce is the state machine. It never performs I/O: a move is only
// emitted on a resolved drop, never while dragging.
func Reduce(s State, ev Event, hit HitTester) (State, []Effect) {
	switch e := ev.(type) {
	case Press:
		if s.Phase != Idle {
			return s, nil
		}
		if !e.Touch && e.Button != 0 {
			return s, nil
		}
		return State{
			Phase:           Pressed,
			AppointmentID:   e.AppointmentID,
			OriginX:         e.X,
			OriginY:         e.Y,
			X:               e.X,
			Y:               e.Y,
			GrabOffsetX:     e.X - e.BlockX,
			GrabOffsetY:     e.Y - e.BlockY,
			DurationMinutes: e.DurationMinutes,
		}, nil

	case Move:
		switch s.Phase {
		case Pressed:
			s.X, s.Y = e.X, e.Y
			if math.Abs(e.X-s.OriginX) <= DragThreshold && math.Abs(e.Y-s.OriginY) <= DragThreshold {
				return s, nil
			}
			s.Phase = Dragging
			s.HasMoved = true
			gx, gy := s.GhostPosition()
			return s, []Effect{ShowGhost{AppointmentID: s.AppointmentID, X: gx, Y: gy}, LockSelection{}}
		case Dragging:
			s.X, s.Y = e.X, e.Y
			gx, gy := s.GhostPosition()
			return s, []Effect{MoveGhost{X: gx, Y: gy}}
		}
		return s, nil

	case Release:
		switch s.Phase {
		case Pressed:
			id := s.AppointmentID
			return State{}, []Effect{OpenAppointment{AppointmentID: id}}
		case Dragging:
			effects := []Effect{HideGhost{}, UnlockSelection{}}
			if hit != nil {
				if cell, ok := hit.HitTest(e.X, e.Y); ok {
					effects = append(effects, MoveAppointment{
						AppointmentID: s.AppointmentID,
						DentistID:     cell.DentistID,
						Slot:          cell.Slot,
					})
					// The browser follows a drop on a cell with a click on it.
					return State{SuppressNextSlotClick: true}, effects
				}
			}
			return State{}, effects
		}
		return s, nil

	case Cancel:
		switch s.Phase {
		case Pressed:
			return State{}, []Effect{UnlockSelection{}}
		case Dragging:
			return State{}, []Effect{HideGhost{}, UnlockSelection{}}
		}
		return s, nil

	case SlotClick:
		if s.SuppressNextSlotClick {
			s.SuppressNextSlotClick = false
			return s, nil
		}
		if s.Phase != Idle {
			return s, nil
		}
		if gate, ok := hit.(creationGate); ok && !gate.CreationAllowed(e.DentistID) {
			return s, nil
		}
		return s, []Effect{CreateAtSlot{DentistID: e.DentistID, Slot: e.Slot}}
	}
	return s, nil
}

// Mover performs a reschedule. The appointment registry implements it.
type Mover interface {
	Move(ctx context.Context, id, dentistID, start string) error
}

// Opener shows an appointment's detail view.
type Opener interface {
	Open(ctx context.Context, appointmentID string)
}

// Creator starts a new appointment at a cell.
type Creator interface {
	CreateAt(ctx context.Context, dentistID, slot string)
}

// Controller owns one gesture stream. It is safe for concurrent use but
// tracks a single pointer.
type Controller struct {
	mu      sync.Mutex
	state   State
	hit     HitTester
	mover   Mover
	opener  Opener
	creator Creator
}

// NewController wires the reducer to its collaborators. Opener and creator
// may be nil.
func NewController(hit HitTester, mover Mover, opener Opener, creator Creator) *Controller {
	return &Controller{hit: hit, mover: mover, opener: opener, creator: creator}
}

// SetLayout replaces the hit tester, e.g. after the board re-rendered.
func (c *Controller) SetLayout(hit HitTester) {
	c.mu.Lock()
	c.hit = hit
	c.mu.Unlock()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Dispatch feeds one event through the reducer and carries out the command
// effects. All effects are returned so the caller can render the visual
// ones. A failed move is returned; the gesture is over either way.
func (c *Controller) Dispatch(ctx context.Context, ev Event) ([]Effect, error) {
	c.mu.Lock()
	next, effects := Reduce(c.state, ev, c.hit)
	c.state = next
	c.mu.Unlock()

	var err error
	for _, eff := range effects {
		switch e := eff.(type) {
		case MoveAppointment:
			if c.mover != nil {
				if merr := c.mover.Move(ctx, e.AppointmentID, e.DentistID, e.Slot); merr != nil {
					err = merr
				}
			}
		case OpenAppointment:
			if c.opener != nil {
				c.opener.Open(ctx, e.AppointmentID)
			}
		case CreateAtSlot:
			if c.creator != nil {
				c.creator.CreateAt(ctx, e.DentistID, e.Slot)
			}
		}
	}
	return effects, err
}
