package board

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dentboard/dentboard/internal/platform/websocket"
	"github.com/dentboard/dentboard/pkg/slotgrid"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []websocket.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e websocket.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type fixedHours slotgrid.WorkingHours

func (h fixedHours) WorkingHours(context.Context) slotgrid.WorkingHours {
	return slotgrid.WorkingHours(h)
}

func TestTicker_Current(t *testing.T) {
	tests := []struct {
		name    string
		now     time.Time
		visible bool
		offset  float64
	}{
		{"inside hours", testNow, true, 182},
		{"at opening", time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC), true, 0},
		{"before opening", time.Date(2026, 3, 10, 6, 59, 0, 0, time.UTC), false, 0},
		{"at closing", time.Date(2026, 3, 10, 19, 0, 0, 0, time.UTC), false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := tt.now
			tk := NewTicker(&recordingPublisher{}, fixedHours(slotgrid.DefaultWorkingHours), zerolog.Nop(),
				WithTickerClock(func() time.Time { return now }))
			line := tk.Current(context.Background())
			if line.Visible != tt.visible || line.Offset != tt.offset {
				t.Errorf("got %+v", line)
			}
			if line.Date != today {
				t.Errorf("expected date %s, got %s", today, line.Date)
			}
		})
	}
}

func TestTicker_TickPublishesNowLine(t *testing.T) {
	pub := &recordingPublisher{}
	tk := NewTicker(pub, fixedHours{Start: 8, End: 16}, zerolog.Nop(),
		WithTickerClock(func() time.Time { return testNow }))

	tk.Tick(context.Background())
	if pub.count() != 1 {
		t.Fatalf("expected one event, got %d", pub.count())
	}
	ev := pub.events[0]
	if ev.Type != EventNowLine || ev.Topic != websocket.TopicBoard {
		t.Errorf("unexpected event %+v", ev)
	}
	var line NowLine
	if err := json.Unmarshal(ev.Data, &line); err != nil {
		t.Fatal(err)
	}
	// 09:10 is 70 minutes after an 08:00 opening.
	if !line.Visible || line.Offset != 98 || line.Time != "09:10" {
		t.Errorf("unexpected payload %+v", line)
	}
}

func TestTicker_RunStopsWithContext(t *testing.T) {
	pub := &recordingPublisher{}
	tk := NewTicker(pub, fixedHours(slotgrid.DefaultWorkingHours), zerolog.Nop(), WithInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tk.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for pub.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ticker did not stop")
	}
	if pub.count() < 3 {
		t.Errorf("expected at least 3 ticks, got %d", pub.count())
	}
}
