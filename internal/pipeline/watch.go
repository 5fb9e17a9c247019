package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultInterval is the watch period when none is configured.
const DefaultInterval = 6 * time.Hour

// Watch runs a pass immediately and then every interval, each pass asking
// only for awards published in the preceding interval. A failed pass is
// logged and the loop continues. It blocks until ctx is cancelled.
func (p *Pipeline) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	log := zap.L().With(zap.String("component", "pipeline.watch"))
	log.Info("starting watch", zap.Duration("interval", interval))

	p.tick(ctx, log, interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("watch stopped")
			return
		case <-ticker.C:
			p.tick(ctx, log, interval)
		}
	}
}

func (p *Pipeline) tick(ctx context.Context, log *zap.Logger, interval time.Duration) {
	since := p.now().Add(-interval).UTC().Format(time.RFC3339)
	sum, err := p.Run(ctx, since)
	if err != nil {
		log.Error("pipeline: watch pass failed", zap.Error(err))
		return
	}
	log.Info("pipeline: watch pass complete",
		zap.String("run_id", sum.RunID),
		zap.Int("new_awards", sum.NewAwards),
		zap.Time("next_run", p.now().Add(interval)),
	)
}
