package auditevent

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/dentboard/dentboard/internal/platform/syncq"
)

// Sink accepts audit entries. Append never blocks on the store and never
// reports failure to the caller.
type Sink interface {
	Append(ctx context.Context, e Entry)
}

// NopSink discards entries. It is the sink in local mode.
type NopSink struct{}

func (NopSink) Append(context.Context, Entry) {}

// Service writes entries through the sync queue and serves the activity view.
type Service struct {
	repo   EntryRepository
	queue  *syncq.Queue
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo EntryRepository, queue *syncq.Queue, logger zerolog.Logger) *Service {
	return &Service{repo: repo, queue: queue, logger: logger, now: time.Now}
}

// Append queues an insert. A failed insert is logged at warn level and
// dropped. Without a repository it does nothing.
func (s *Service) Append(_ context.Context, e Entry) {
	if s.repo == nil {
		return
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	s.queue.Enqueue(syncq.Job{
		Name: "audit " + string(e.Action),
		Run: func(ctx context.Context) error {
			if err := s.repo.Insert(ctx, &e); err != nil {
				s.logger.Warn().Err(err).
					Str("action", string(e.Action)).
					Str("entity_id", e.EntityID).
					Msg("activity log insert failed")
			}
			return nil
		},
	})
}

func (s *Service) Recent(ctx context.Context, limit int) ([]*Entry, error) {
	if s.repo == nil {
		return nil, nil
	}
	if limit <= 0 || limit > RecentLimit {
		limit = RecentLimit
	}
	return s.repo.Recent(ctx, limit)
}
