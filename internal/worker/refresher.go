package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Endgame-Tech/choma-sub014/internal/domain"
	"github.com/Endgame-Tech/choma-sub014/internal/services"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

// Subscriptions lists the subscriptions a refresh pass covers.
type Subscriptions interface {
	ListActiveSubscriptions(ctx context.Context) ([]*domain.Subscription, error)
}

// Syncer reconciles one subscription with upstream.
type Syncer interface {
	Sync(ctx context.Context, subscriptionID string) (services.SyncResult, error)
}

// Refresher periodically pulls upstream statuses for every active subscription.
// Failures are logged and never surfaced; the next pass retries.
type Refresher struct {
	subs        Subscriptions
	syncer      Syncer
	logger      *slog.Logger
	cron        *cron.Cron
	schedule    string
	concurrency int
	timeout     time.Duration

	running atomic.Bool
}

type PassResult struct {
	Subscriptions int
	Replaced      int
	Failed        int
}

func NewRefresher(subs Subscriptions, syncer Syncer, logger *slog.Logger, schedule string, concurrency int) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency < 1 {
		concurrency = 1
	}

	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))

	return &Refresher{
		subs:        subs,
		syncer:      syncer,
		logger:      logger,
		cron:        c,
		schedule:    schedule,
		concurrency: concurrency,
		timeout:     2 * time.Minute,
	}
}

// Start registers the refresh job and starts the scheduler.
func (r *Refresher) Start() error {
	if _, err := r.cron.AddFunc(r.schedule, r.runScheduled); err != nil {
		r.logger.Error("failed to schedule upstream refresh job", "error", err)
		return err
	}
	r.logger.Info("scheduled upstream refresh job", "schedule", r.schedule)

	r.cron.Start()
	return nil
}

// Stop stops the scheduler; the returned context is done once a running pass finishes.
func (r *Refresher) Stop() context.Context {
	return r.cron.Stop()
}

func (r *Refresher) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if _, err := r.RunOnce(ctx); err != nil {
		r.logger.Error("upstream refresh pass failed", "error", err)
	}
}

// RunOnce syncs every active subscription with bounded concurrency.
// Per-subscription failures are counted, not returned.
func (r *Refresher) RunOnce(ctx context.Context) (PassResult, error) {
	if !r.running.CompareAndSwap(false, true) {
		return PassResult{}, errors.New("refresh pass already running")
	}
	defer r.running.Store(false)

	start := time.Now()
	subs, err := r.subs.ListActiveSubscriptions(ctx)
	if err != nil {
		return PassResult{}, err
	}

	var replaced, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for _, sub := range subs {
		id := sub.ID
		g.Go(func() error {
			res, err := r.syncer.Sync(gctx, id)
			if err != nil {
				failed.Add(1)
				r.logger.Warn("upstream sync failed", "subscription_id", id, "error", err)
				return nil
			}
			replaced.Add(int64(res.Replaced))
			return nil
		})
	}
	_ = g.Wait()

	out := PassResult{
		Subscriptions: len(subs),
		Replaced:      int(replaced.Load()),
		Failed:        int(failed.Load()),
	}
	r.logger.Info("upstream refresh pass finished",
		"subscriptions", out.Subscriptions,
		"replaced", out.Replaced,
		"failed", out.Failed,
		"dur_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}
