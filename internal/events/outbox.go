package events

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type OutboxRepository interface {
	FetchPending(ctx context.Context, limit int) ([]Event, error)
	MarkPublished(ctx context.Context, ids []string) error
}

// OutboxWorker relays enqueued events to the broadcaster. Delivery is
// at-least-once: an event is marked published only after a successful
// publish, so a crash between the two replays it.
type OutboxWorker struct {
	Repo         OutboxRepository
	Publisher    Publisher
	PollInterval time.Duration
	BatchSize    int
	Logger       *zap.Logger
}

func (w *OutboxWorker) Start(ctx context.Context) error {
	if w.Logger == nil {
		w.Logger = zap.NewNop()
	}
	if w.PollInterval <= 0 {
		w.PollInterval = time.Second
	}
	if w.BatchSize <= 0 {
		w.BatchSize = 50
	}

	ticker := time.NewTicker(w.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			evts, err := w.Repo.FetchPending(ctx, w.BatchSize)
			if err != nil {
				w.Logger.Error("outbox fetch failed", zap.Error(err))
				continue
			}
			if len(evts) == 0 {
				continue
			}
			published := make([]string, 0, len(evts))
			for _, evt := range evts {
				if err := w.Publisher.Publish(ctx, evt); err != nil {
					w.Logger.Error("publish failed",
						zap.String("event_id", evt.ID),
						zap.String("event_type", evt.Type),
						zap.Error(err))
					continue
				}
				published = append(published, evt.ID)
			}
			if err := w.Repo.MarkPublished(ctx, published); err != nil {
				w.Logger.Error("mark published failed", zap.Error(err))
			}
		}
	}
}
