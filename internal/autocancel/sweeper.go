// Package autocancel runs the recurring sweep that cancels deposits and
// withdrawals left Pending past a timeout.
package autocancel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"wallet_ledger/internal/clock"
	"wallet_ledger/internal/logger"
	"wallet_ledger/internal/metrics"
)

const (
	DefaultTimeout  = 5 * time.Minute
	DefaultInterval = time.Minute
	DefaultBatch    = 500
)

// Expirer cancels up to limit Pending rows created before cutoff.
type Expirer interface {
	ExpirePending(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// Locker grants platform-wide exclusivity for one run.
type Locker interface {
	TryLock(ctx context.Context) (release func(), ok bool, err error)
}

type Config struct {
	Timeout  time.Duration
	Interval time.Duration
	Batch    int
}

type Result struct {
	Deposits    int
	Withdrawals int
	Skipped     bool
	Err         error
}

type Sweeper struct {
	deposits    Expirer
	withdrawals Expirer
	locker      Locker
	cfg         Config
	clock       clock.Clock
	metrics     *metrics.Metrics
	log         *logger.Logger

	running sync.Mutex
}

// NewSweeper builds a sweeper. locker may be nil for a single-instance deployment.
func NewSweeper(deposits, withdrawals Expirer, locker Locker, cfg Config, clk clock.Clock, m *metrics.Metrics, log *logger.Logger) *Sweeper {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Batch <= 0 {
		cfg.Batch = DefaultBatch
	}
	return &Sweeper{
		deposits:    deposits,
		withdrawals: withdrawals,
		locker:      locker,
		cfg:         cfg,
		clock:       clk,
		metrics:     m,
		log:         log,
	}
}

// Start runs the sweep on every tick until ctx is done.
func (s *Sweeper) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.log.WithFields(logrus.Fields{
		"interval": s.cfg.Interval,
		"timeout":  s.cfg.Timeout,
		"batch":    s.cfg.Batch,
	}).Info("auto-cancel sweeper started")

	for {
		select {
		case <-ctx.Done():
			s.log.Info("auto-cancel sweeper stopped")
			return nil
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single bounded pass. A pass that finds another one in
// progress, locally or on another instance, is skipped.
func (s *Sweeper) RunOnce(ctx context.Context) Result {
	if !s.running.TryLock() {
		return Result{Skipped: true}
	}
	defer s.running.Unlock()

	if s.locker != nil {
		release, ok, err := s.locker.TryLock(ctx)
		if err != nil {
			err = fmt.Errorf("failed to acquire sweep lock: %w", err)
			s.log.Errorf("auto-cancel sweep: %v", err)
			s.metrics.ObserveSweep(0, 0, err)
			return Result{Err: err}
		}
		if !ok {
			return Result{Skipped: true}
		}
		defer release()
	}

	cutoff := s.clock.Now().Add(-s.cfg.Timeout)
	var res Result

	deposits, depErr := s.deposits.ExpirePending(ctx, cutoff, s.cfg.Batch)
	if depErr != nil {
		depErr = fmt.Errorf("deposits: %w", depErr)
	}
	withdrawals, wdErr := s.withdrawals.ExpirePending(ctx, cutoff, s.cfg.Batch)
	if wdErr != nil {
		wdErr = fmt.Errorf("withdrawals: %w", wdErr)
	}
	res.Deposits, res.Withdrawals = deposits, withdrawals
	res.Err = errors.Join(depErr, wdErr)

	s.metrics.ObserveSweep(deposits, withdrawals, res.Err)
	entry := s.log.WithFields(logrus.Fields{
		"cutoff":      cutoff.Format(time.RFC3339),
		"deposits":    deposits,
		"withdrawals": withdrawals,
	})
	switch {
	case res.Err != nil:
		entry.Errorf("auto-cancel sweep failed: %v", res.Err)
	case deposits+withdrawals > 0:
		entry.Info("auto-cancel sweep canceled expired requests")
	default:
		entry.Debug("auto-cancel sweep found nothing to cancel")
	}
	return res
}
