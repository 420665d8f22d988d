package tracker

import (
	"context"
	"io"
	"time"

	"indexer/internal/blockchain"
	"indexer/internal/config"
	"indexer/internal/logger"
	"indexer/internal/metrics"
	"indexer/internal/storage"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// Tracker applies staking events, one at a time and in feed order, to the store.
// It is the single writer of every record it touches.
type Tracker struct {
	ctx                context.Context
	storage            storage.Storage
	metrics            *metrics.TrackerMetrics
	claimTolerance     *uint256.Int
	rateDriftTolerance *uint256.Int
	retryAttempts      uint64
	retryInterval      time.Duration
}

type Option func(*Tracker)

func WithMetrics(m *metrics.TrackerMetrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

func WithClaimTolerance(tolerance *uint256.Int) Option {
	return func(t *Tracker) { t.claimTolerance = new(uint256.Int).Set(tolerance) }
}

func WithRateDriftTolerance(tolerance *uint256.Int) Option {
	return func(t *Tracker) { t.rateDriftTolerance = new(uint256.Int).Set(tolerance) }
}

func WithRetry(attempts uint64, interval time.Duration) Option {
	return func(t *Tracker) {
		t.retryAttempts = attempts
		if interval > 0 {
			t.retryInterval = interval
		}
	}
}

func New(ctx context.Context, st storage.Storage, options ...Option) *Tracker {
	t := &Tracker{
		ctx:                ctx,
		storage:            st,
		claimTolerance:     uint256.NewInt(config.DefaultClaimTolerance),
		rateDriftTolerance: uint256.NewInt(config.DefaultRateDriftTolerance),
		retryAttempts:      config.DefaultRetryAttempts,
		retryInterval:      config.DefaultRetryInterval,
	}
	for _, option := range options {
		option(t)
	}
	return t
}

// NewTracker opens the configured database and wires metrics and tolerances.
func NewTracker(ctx context.Context, configuration config.Configuration) (*Tracker, error) {
	logger.Debug("tracker initialization: opening storage...", zap.String("database", configuration.DatabasePath))

	sqliteStorage, err := storage.NewSqliteStorage(configuration.DatabasePath)
	if err != nil {
		return nil, err
	}

	logger.Debug("tracker initialization: initializing tracker... done")
	return New(ctx, sqliteStorage,
		WithMetrics(metrics.Tracker()),
		WithClaimTolerance(configuration.ClaimTolerance),
		WithRateDriftTolerance(configuration.RateDriftTolerance),
		WithRetry(configuration.RetryAttempts, configuration.RetryInterval),
	), nil
}

// Storage exposes the store for queries.
func (t *Tracker) Storage() storage.Storage {
	return t.storage
}

// Run applies envelopes from source until it is exhausted, the context is
// cancelled, or an event is rejected. A rejection halts ingestion: skipping an
// event would desynchronize every record derived after it.
func (t *Tracker) Run(source blockchain.Source) error {
	logger.Info("tracker: ingestion started")

	var applied, skipped int
	for {
		envelope, err := source.Next(t.ctx)
		if errors.Is(err, io.EOF) {
			logger.Info("tracker: feed exhausted", zap.Int("applied", applied), zap.Int("skipped", skipped))
			return nil
		}
		if err != nil {
			return err
		}

		ok, err := t.Apply(envelope)
		if err != nil {
			logger.Error("tracker: event rejected, halting ingestion",
				zap.String("kind", envelope.Event.Kind()),
				zap.Stringer("position", envelope.Position),
				zap.Bool("rejection", IsRejection(err)),
				zap.Error(err),
			)
			return err
		}
		if ok {
			applied++
		} else {
			skipped++
		}
	}
}

// withRetry replays fn from the beginning while the store reports a transient failure.
func (t *Tracker) withRetry(fn func() error) error {
	backoff := retry.WithMaxRetries(t.retryAttempts, retry.NewConstant(t.retryInterval))

	return retry.Do(t.ctx, backoff, func(ctx context.Context) error {
		err := fn()
		if err != nil && storage.IsTransient(err) {
			logger.Warn("tracker: store busy, replaying event", zap.Error(err))
			t.metrics.ObserveStoreRetry()
			return retry.RetryableError(err)
		}
		return err
	})
}

// Finalize releases the store when the tracker owns it.
func (t *Tracker) Finalize() {
	if closer, ok := t.storage.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			logger.Warn("tracker: closing storage failed", zap.Error(err))
		}
	}
	logger.Info("tracker stopped")
}
