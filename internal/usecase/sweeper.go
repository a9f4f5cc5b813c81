package usecase

import (
	"context"
	"errors"
	"time"

	"eco_api/internal/domain"
	"eco_api/internal/logger"
	"eco_api/internal/repository"
)

const sweepBatch = 100

// AbandonStale moves Initialized payments older than the configured age to
// Abandoned and returns how many were moved.
func (u *PaymentUsecase) AbandonStale(ctx context.Context) (int, error) {
	if u.cfg.AbandonAfter <= 0 {
		return 0, nil
	}
	cutoff := u.now().Add(-u.cfg.AbandonAfter)
	filter := repository.TxFilter{Status: domain.StatusInitialized, CreatedBefore: cutoff}

	total := 0
	for {
		batch, err := u.store.List(ctx, filter, sweepBatch, 0)
		if err != nil {
			return total, err
		}

		moved := 0
		for i := range batch {
			res, err := u.store.Transition(ctx, batch[i].Reference, domain.StatusAbandoned, repository.TransitionOptions{})
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return total, err
			}
			if res.Changed {
				moved++
				u.metrics.Transition(string(res.From), string(domain.StatusAbandoned))
			}
		}
		total += moved

		// a short batch is the last one; a batch with no progress would repeat forever
		if len(batch) < sweepBatch || moved == 0 {
			return total, nil
		}
	}
}

// RunSweeper calls AbandonStale every interval until ctx is done.
func (u *PaymentUsecase) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := u.AbandonStale(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logger.Error("abandon sweep failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("abandoned stale payments", "count", n)
			} else {
				logger.Debug("abandon sweep found nothing")
			}
		}
	}
}
