package board

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/dentboard/dentboard/internal/platform/websocket"
	"github.com/dentboard/dentboard/pkg/slotgrid"
)

const (
	EventNowLine        = "now_line"
	DefaultTickInterval = time.Minute
)

// HoursSource reads the clinic's working hours.
type HoursSource interface {
	WorkingHours(ctx context.Context) slotgrid.WorkingHours
}

// NowLine is the payload of a now_line event. Offset is meaningful only
// when Visible is set.
type NowLine struct {
	Date    string  `json:"date"`
	Time    string  `json:"time"`
	Offset  float64 `json:"offset"`
	Visible bool    `json:"visible"`
}

// Ticker publishes the current-time indicator on a fixed interval.
type Ticker struct {
	events   websocket.EventPublisher
	hours    HoursSource
	geometry slotgrid.Geometry
	interval time.Duration
	now      func() time.Time
	logger   zerolog.Logger
}

type TickerOption func(*Ticker)

func WithInterval(d time.Duration) TickerOption {
	return func(t *Ticker) {
		if d > 0 {
			t.interval = d
		}
	}
}

func WithTickerClock(now func() time.Time) TickerOption {
	return func(t *Ticker) { t.now = now }
}

func NewTicker(events websocket.EventPublisher, hours HoursSource, logger zerolog.Logger, opts ...TickerOption) *Ticker {
	t := &Ticker{
		events:   events,
		hours:    hours,
		geometry: slotgrid.DefaultGeometry,
		interval: DefaultTickInterval,
		now:      time.Now,
		logger:   logger.With().Str("component", "now-line").Logger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Current computes the indicator for now.
func (t *Ticker) Current(ctx context.Context) NowLine {
	now := t.now()
	date := slotgrid.DateKey(now)
	wh := t.hours.WorkingHours(ctx)
	offset, visible := t.geometry.NowLine(now, date, wh)
	return NowLine{Date: date, Time: now.Format("15:04"), Offset: offset, Visible: visible}
}

// Tick publishes one now_line event.
func (t *Ticker) Tick(ctx context.Context) {
	line := t.Current(ctx)
	if err := t.events.Publish(ctx, websocket.NewEvent(EventNowLine, "board", line.Date, line)); err != nil {
		t.logger.Debug().Err(err).Msg("publish now line")
	}
}

// Run ticks until ctx is done.
func (t *Ticker) Run(ctx context.Context) {
	tk := time.NewTicker(t.interval)
	defer tk.Stop()

	t.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
			t.Tick(ctx)
		}
	}
}
