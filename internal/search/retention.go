package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/logging"
)

// retentionCron fires daily at 02:30, off the busy hours of most
// sites. Seconds field included.
const retentionCron = "0 30 2 * * *"

// Retention deletes rotation indices older than a day budget. Zero or
// negative days disables the sweep entirely.
type Retention struct {
	store  *Store
	days   int
	logger *slog.Logger
	sched  gocron.Scheduler
}

// NewRetention creates the sweep job. Schedule starts it.
func NewRetention(store *Store, days int, logger *slog.Logger) *Retention {
	return &Retention{
		store:  store,
		days:   days,
		logger: logging.Default(logger).With("component", "retention"),
	}
}

// Schedule registers the daily sweep. Times are UTC so the sweep hour
// does not drift with the host timezone.
func (r *Retention) Schedule(ctx context.Context) error {
	if r.days <= 0 {
		r.logger.Info("index retention disabled")
		return nil
	}

	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return fmt.Errorf("create retention scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.CronJob(retentionCron, true),
		gocron.NewTask(func() { r.Sweep(ctx) }),
		gocron.WithName("index-retention"),
	)
	if err != nil {
		return fmt.Errorf("create retention job: %w", err)
	}

	sched.Start()
	r.sched = sched
	r.logger.Info("index retention scheduled", "days", r.days, "cron", retentionCron)
	return nil
}

// Stop shuts the scheduler down and waits for a running sweep.
func (r *Retention) Stop() error {
	if r.sched == nil {
		return nil
	}
	return r.sched.Shutdown()
}

// Sweep deletes every rotation index whose period started more than
// the retention budget ago. Indices with foreign suffixes are left
// alone.
func (r *Retention) Sweep(ctx context.Context) {
	names, err := r.store.Indices(ctx)
	if err != nil {
		r.logger.Warn("retention sweep skipped", "error", err)
		return
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -r.days)
	deleted := 0
	for _, name := range names {
		start, ok := r.store.SuffixTime(name)
		if !ok || !start.Before(cutoff) {
			continue
		}
		if err := r.store.DeleteIndex(ctx, name); err != nil {
			r.logger.Warn("index delete failed", "index", name, "error", err)
			continue
		}
		r.logger.Info("expired index deleted", "index", name)
		deleted++
	}
	if deleted > 0 {
		r.logger.Info("retention sweep finished", "deleted", deleted, "cutoff", cutoff.Format("2006.01.02"))
	}
}
