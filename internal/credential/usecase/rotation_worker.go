package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// RotationWorker runs rotation sweeps on a fixed schedule.
type RotationWorker struct {
	rotation RotationUseCase
	interval time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
}

// NewRotationWorker creates a RotationWorker that sweeps every interval.
func NewRotationWorker(
	rotation RotationUseCase,
	interval time.Duration,
	clock clockwork.Clock,
	logger *slog.Logger,
) *RotationWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &RotationWorker{
		rotation: rotation,
		interval: interval,
		clock:    clock,
		logger:   logger,
	}
}

// Start sweeps once immediately and then on every tick until ctx is done.
func (w *RotationWorker) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "starting token rotation worker",
		slog.Duration("interval", w.interval),
	)

	w.sweep(ctx)

	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("stopping token rotation worker")
			return ctx.Err()
		case <-ticker.Chan():
			w.sweep(ctx)
		}
	}
}

func (w *RotationWorker) sweep(ctx context.Context) {
	if _, err := w.rotation.Sweep(ctx); err != nil && ctx.Err() == nil {
		w.logger.ErrorContext(ctx, "token rotation sweep failed", slog.Any("error", err))
	}
}
