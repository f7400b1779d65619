package board

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/dentboard/dentboard/internal/domain/scheduling"
	"github.com/dentboard/dentboard/internal/platform/dragdrop"
	"github.com/dentboard/dentboard/internal/platform/websocket"
)

// Frame types a board connection may send besides hub subscriptions.
const (
	FrameLayout    = "layout"
	FramePress     = "press"
	FrameMove      = "move"
	FrameRelease   = "release"
	FrameCancel    = "cancel"
	FrameSlotClick = "slot_click"
)

// Reply types sent back to the gesturing connection only.
const (
	ReplyGesture      = "gesture"
	ReplyGestureError = "gesture_error"
	ReplyOpen         = "open_appointment"
	ReplyCreate       = "create_appointment"
)

const dispatchTimeout = 5 * time.Second

// Frame is one inbound pointer or grid message. Coordinates are in the
// browser's board space.
type Frame struct {
	Type            string               `json:"type"`
	Layout          *dragdrop.GridLayout `json:"layout,omitempty"`
	Date            string               `json:"date,omitempty"`
	AppointmentID   string               `json:"appointment_id,omitempty"`
	X               float64              `json:"x"`
	Y               float64              `json:"y"`
	BlockX          float64              `json:"block_x"`
	BlockY          float64              `json:"block_y"`
	DurationMinutes int                  `json:"duration_minutes,omitempty"`
	Button          int                  `json:"button"`
	Touch           bool                 `json:"touch"`
	DentistID       string               `json:"dentist_id,omitempty"`
	Slot            string               `json:"slot,omitempty"`
}

// event converts the frame into a reducer event; ok is false for frames
// that are not gestures.
func (f Frame) event() (dragdrop.Event, bool) {
	switch f.Type {
	case FramePress:
		return dragdrop.Press{
			AppointmentID:   f.AppointmentID,
			X:               f.X,
			Y:               f.Y,
			BlockX:          f.BlockX,
			BlockY:          f.BlockY,
			DurationMinutes: f.DurationMinutes,
			Button:          f.Button,
			Touch:           f.Touch,
		}, true
	case FrameMove:
		return dragdrop.Move{X: f.X, Y: f.Y}, true
	case FrameRelease:
		return dragdrop.Release{X: f.X, Y: f.Y}, true
	case FrameCancel:
		return dragdrop.Cancel{}, true
	case FrameSlotClick:
		return dragdrop.SlotClick{DentistID: f.DentistID, Slot: f.Slot}, true
	}
	return nil, false
}

// EffectMessage is the wire form of a reducer effect.
type EffectMessage struct {
	Kind          string   `json:"kind"`
	AppointmentID string   `json:"appointment_id,omitempty"`
	DentistID     string   `json:"dentist_id,omitempty"`
	Slot          string   `json:"slot,omitempty"`
	X             *float64 `json:"x,omitempty"`
	Y             *float64 `json:"y,omitempty"`
}

func encodeEffect(eff dragdrop.Effect) EffectMessage {
	switch e := eff.(type) {
	case dragdrop.ShowGhost:
		return EffectMessage{Kind: "show_ghost", AppointmentID: e.AppointmentID, X: &e.X, Y: &e.Y}
	case dragdrop.MoveGhost:
		return EffectMessage{Kind: "move_ghost", X: &e.X, Y: &e.Y}
	case dragdrop.HideGhost:
		return EffectMessage{Kind: "hide_ghost"}
	case dragdrop.LockSelection:
		return EffectMessage{Kind: "lock_selection"}
	case dragdrop.UnlockSelection:
		return EffectMessage{Kind: "unlock_selection"}
	case dragdrop.OpenAppointment:
		return EffectMessage{Kind: "open_appointment", AppointmentID: e.AppointmentID}
	case dragdrop.MoveAppointment:
		return EffectMessage{Kind: "move_appointment", AppointmentID: e.AppointmentID, DentistID: e.DentistID, Slot: e.Slot}
	case dragdrop.CreateAtSlot:
		return EffectMessage{Kind: "create_at_slot", DentistID: e.DentistID, Slot: e.Slot}
	}
	return EffectMessage{Kind: "unknown"}
}

type gestureReply struct {
	Type    string          `json:"type"`
	Phase   string          `json:"phase"`
	Effects []EffectMessage `json:"effects"`
}

type errorReply struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type openReply struct {
	Type        string                  `json:"type"`
	Appointment *scheduling.Appointment `json:"appointment,omitempty"`
	PatientName string                  `json:"patient_name,omitempty"`
	Error       string                  `json:"error,omitempty"`
}

type createReply struct {
	Type      string `json:"type"`
	DentistID string `json:"dentist_id"`
	Date      string `json:"date"`
	Start     string `json:"start"`
}

// session is one connection's gesture state.
type session struct {
	ctrl  *dragdrop.Controller
	reply func(v interface{})
	mu    sync.Mutex
	date  string
}

func (s *session) boardDate() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.date
}

// opener and creator answer on the session only; the resulting board
// change, if any, is broadcast by the registry.
type opener struct {
	reg *scheduling.Registry
	s   *session
}

func (o opener) Open(_ context.Context, id string) {
	a, err := o.reg.Get(id)
	if err != nil {
		o.s.reply(openReply{Type: ReplyOpen, Error: err.Error()})
		return
	}
	o.s.reply(openReply{Type: ReplyOpen, Appointment: a, PatientName: o.reg.PatientLabel(*a)})
}

type creator struct{ s *session }

func (c creator) CreateAt(_ context.Context, dentistID, slot string) {
	c.s.reply(createReply{Type: ReplyCreate, DentistID: dentistID, Date: c.s.boardDate(), Start: slot})
}

// Gestures runs one drag controller per board connection. Drops are applied
// through the registry, which broadcasts the move to every subscriber.
type Gestures struct {
	ws      *websocket.Handler
	reg     *scheduling.Registry
	today   func() string
	logger  zerolog.Logger
	mu      sync.Mutex
	clients map[*websocket.Client]*session
}

func NewGestures(ws *websocket.Handler, reg *scheduling.Registry, builder *Builder, logger zerolog.Logger) *Gestures {
	return &Gestures{
		ws:      ws,
		reg:     reg,
		today:   builder.Today,
		logger:  logger.With().Str("component", "gestures").Logger(),
		clients: make(map[*websocket.Client]*session),
	}
}

// HandleConnect upgrades GET /ws/board. The connection is subscribed to the
// board topic and may send gesture frames.
func (g *Gestures) HandleConnect(c echo.Context) error {
	return g.ws.Serve(c, g.onMessage, g.onClose, websocket.TopicBoard)
}

func (g *Gestures) newSession(reply func(v interface{})) *session {
	s := &session{reply: reply, date: g.today()}
	s.ctrl = dragdrop.NewController(nil, g.reg, opener{reg: g.reg, s: s}, creator{s: s})
	return s
}

func (g *Gestures) sessionFor(client *websocket.Client) *session {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.clients[client]
	if !ok {
		s = g.newSession(client.Reply)
		g.clients[client] = s
	}
	return s
}

func (g *Gestures) onMessage(client *websocket.Client, raw []byte) bool {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return false
	}
	if f.Type != FrameLayout {
		if _, ok := f.event(); !ok {
			return false
		}
	}
	g.handle(g.sessionFor(client), f)
	return true
}

func (g *Gestures) onClose(client *websocket.Client) {
	g.mu.Lock()
	delete(g.clients, client)
	g.mu.Unlock()
}

// handle applies one frame to a session. The request context is gone once
// the connection is hijacked, so each dispatch gets its own deadline.
func (g *Gestures) handle(s *session, f Frame) {
	if f.Type == FrameLayout {
		if f.Layout != nil {
			s.ctrl.SetLayout(*f.Layout)
		}
		if f.Date != "" {
			s.mu.Lock()
			s.date = f.Date
			s.mu.Unlock()
		}
		return
	}

	ev, _ := f.event()
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	effects, err := s.ctrl.Dispatch(ctx, ev)
	if err != nil {
		g.logger.Warn().Err(err).Str("type", f.Type).Msg("apply drop")
		s.reply(errorReply{Type: ReplyGestureError, Message: err.Error()})
	}
	if len(effects) == 0 {
		return
	}
	msg := gestureReply{Type: ReplyGesture, Phase: s.ctrl.State().Phase.String(), Effects: make([]EffectMessage, len(effects))}
	for i, eff := range effects {
		msg.Effects[i] = encodeEffect(eff)
	}
	s.reply(msg)
}

// Sessions reports how many connections have sent a gesture frame and are
// still open.
func (g *Gestures) Sessions() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.clients)
}
