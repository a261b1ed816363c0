// Package watch keeps the Gmail push subscription alive.
//
// Gmail stops publishing to Pub/Sub seven days after users.watch was called,
// so a long-running server re-registers the watch on a fixed interval.
package watch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/teemow/newsletterpost/internal/gmail"
	"github.com/teemow/newsletterpost/internal/instrumentation"
	"github.com/teemow/newsletterpost/internal/logging"
)

// DefaultInterval renews well before the seven day expiry.
const DefaultInterval = 24 * time.Hour

// Watcher registers Gmail push notifications.
type Watcher interface {
	LabelID(ctx context.Context, name string) (string, error)
	Watch(ctx context.Context, labelID, topic string) (*gmail.WatchResult, error)
}

// Config configures a Renewer.
type Config struct {
	LabelName string
	// Topic is the fully qualified Pub/Sub topic name.
	Topic    string
	Interval time.Duration
	Clock    clockwork.Clock
	Logger   *slog.Logger
	Metrics  *instrumentation.Metrics
}

// Renewer re-registers the label watch periodically.
type Renewer struct {
	watcher  Watcher
	label    string
	topic    string
	interval time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *instrumentation.Metrics

	mu      sync.RWMutex
	labelID string
	last    *gmail.WatchResult
}

// NewRenewer creates a Renewer.
func NewRenewer(w Watcher, cfg Config) (*Renewer, error) {
	if w == nil {
		return nil, errors.New("watch: watcher is required")
	}
	if cfg.LabelName == "" || cfg.Topic == "" {
		return nil, errors.New("watch: label name and topic are required")
	}

	r := &Renewer{
		watcher:  w,
		label:    cfg.LabelName,
		topic:    cfg.Topic,
		interval: cfg.Interval,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
	}
	if r.interval <= 0 {
		r.interval = DefaultInterval
	}
	if r.clock == nil {
		r.clock = clockwork.NewRealClock()
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.logger = r.logger.With(logging.Stage(instrumentation.StageWatchRenew), slog.String("label", r.label))
	return r, nil
}

// Renew registers the watch once. The label ID is resolved on first use.
func (r *Renewer) Renew(ctx context.Context) (*gmail.WatchResult, error) {
	ctx, span := instrumentation.StartStageSpan(ctx, instrumentation.StageWatchRenew)
	start := r.clock.Now()

	res, err := r.renew(ctx)

	r.metrics.RecordStage(ctx, instrumentation.StageWatchRenew, instrumentation.StatusFor(err), r.clock.Since(start))
	instrumentation.EndSpan(span, err)
	return res, err
}

func (r *Renewer) renew(ctx context.Context) (*gmail.WatchResult, error) {
	r.mu.RLock()
	labelID := r.labelID
	r.mu.RUnlock()

	if labelID == "" {
		id, err := r.watcher.LabelID(ctx, r.label)
		if err != nil {
			return nil, err
		}
		labelID = id
	}

	res, err := r.watcher.Watch(ctx, labelID, r.topic)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.labelID = labelID
	r.last = res
	r.mu.Unlock()
	return res, nil
}

// Last returns the most recent successful registration, or nil.
func (r *Renewer) Last() *gmail.WatchResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

// Run renews immediately and then every interval until ctx is done.
// Failures are logged and retried on the next tick.
func (r *Renewer) Run(ctx context.Context) {
	r.renewAndLog(ctx)

	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			r.renewAndLog(ctx)
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "watch renewer stopped")
			return
		}
	}
}

func (r *Renewer) renewAndLog(ctx context.Context) {
	res, err := r.Renew(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to renew gmail watch",
			logging.Err(err),
			slog.Duration("retry_in", r.interval))
		return
	}
	r.logger.InfoContext(ctx, "gmail watch renewed",
		slog.Uint64("history_id", res.HistoryID),
		slog.Time("expiration", res.Expiration),
		slog.Time("next_renewal", r.clock.Now().Add(r.interval)))
}
