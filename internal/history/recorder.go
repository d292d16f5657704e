// Package history persists emitted price ticks in batches.
package history

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kitco/pricer/internal/domain"
)

// Store is the persistence the recorder writes to.
type Store interface {
	BulkInsert(ctx context.Context, ticks []domain.PriceTick) (int, error)
}

// Recorder buffers ticks and writes them when the batch is full or the
// flush interval elapses.
type Recorder struct {
	store     Store
	batchSize int
	interval  time.Duration
}

func NewRecorder(store Store, batchSize int, interval time.Duration) *Recorder {
	if batchSize <= 0 {
		batchSize = 64
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Recorder{store: store, batchSize: batchSize, interval: interval}
}

// Run records ticks until the channel closes or ctx is done, flushing what
// is buffered before returning.
func (r *Recorder) Run(ctx context.Context, ticks <-chan domain.PriceTick) error {
	timer := time.NewTicker(r.interval)
	defer timer.Stop()

	batch := make([]domain.PriceTick, 0, r.batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Flushes at shutdown must outlive ctx.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if _, err := r.store.BulkInsert(fctx, batch); err != nil {
			log.Error().Str("component", "history").Err(err).Int("ticks", len(batch)).Msg("persist ticks failed")
		}
		batch = batch[:0]
	}
	defer flush()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			flush()
		case t, ok := <-ticks:
			if !ok {
				return nil
			}
			batch = append(batch, t)
			if len(batch) >= r.batchSize {
				flush()
			}
		}
	}
}
