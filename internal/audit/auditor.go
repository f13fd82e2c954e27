// Package audit replays the stored block log from genesis and checks that
// every block still validates against the state its predecessors produce.
package audit

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/thanhnp/coin-ledger/internal/models"
	"github.com/thanhnp/coin-ledger/internal/storage"
)

// ProgressInterval is the number of blocks between progress log lines
const ProgressInterval = 100

// Report is the outcome of one audit run
type Report struct {
	Blocks    int64
	TipIndex  int64
	Unspent   int
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

// OK reports whether the run found no problem
func (r Report) OK() bool {
	return r.Err == nil
}

// Auditor audits a BlockRepository, once or on an interval
type Auditor struct {
	repo     *storage.BlockRepository
	interval time.Duration
	log      logrus.FieldLogger

	mu      sync.RWMutex
	running bool
	last    *Report
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates an Auditor. An interval of zero audits once per Start.
func New(repo *storage.BlockRepository, interval time.Duration, logger logrus.FieldLogger) *Auditor {
	return &Auditor{
		repo:     repo,
		interval: interval,
		log:      logger.WithField("component", "audit"),
	}
}

// Run replays the log once. The returned error is also recorded in the
// report.
func (a *Auditor) Run(ctx context.Context) (Report, error) {
	report := Report{StartedAt: time.Now()}
	report.Err = a.replay(ctx, &report)
	report.Duration = time.Since(report.StartedAt)

	a.mu.Lock()
	a.last = &report
	a.mu.Unlock()

	entry := a.log.WithFields(logrus.Fields{
		"blocks":   report.Blocks,
		"tip":      report.TipIndex,
		"unspent":  report.Unspent,
		"duration": report.Duration,
	})
	if report.Err != nil {
		entry.WithError(report.Err).Error("Audit failed")
	} else {
		entry.Info("Audit passed")
	}
	return report, report.Err
}

func (a *Auditor) replay(ctx context.Context, report *Report) error {
	hp := a.repo.HashProvider()
	settings := a.repo.Settings()

	iter, err := a.repo.Blocks()
	if err != nil {
		return fmt.Errorf("failed to open block iterator: %w", err)
	}
	defer iter.Close()

	view := models.MapView{}
	var prev *models.Block
	for iter.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}

		block := iter.Block()
		if err := checkLink(prev, block); err != nil {
			return err
		}

		delta, err := block.Check(hp, view, settings)
		if err != nil {
			return fmt.Errorf("block %d: %w", block.Index, err)
		}
		delta.Apply(view)

		prev = block
		report.Blocks++
		report.TipIndex = block.Index

		if block.Index%ProgressInterval == 0 {
			a.log.WithField("index", block.Index).Debug("Audited blocks")
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to read block log: %w", err)
	}

	report.Unspent = len(view)
	if !a.atTip(report.TipIndex) {
		a.log.WithField("index", report.TipIndex).Debug("Log grew during audit, skipping unspent comparison")
		return nil
	}
	if err := a.compareUnspent(view); err != nil {
		// An append racing the comparison can change the stored set
		if !a.atTip(report.TipIndex) {
			return nil
		}
		return err
	}
	return nil
}

// compareUnspent checks that the stored unspent set holds exactly the
// outputs in view
func (a *Auditor) compareUnspent(view models.MapView) error {
	for op, want := range view {
		got, err := a.repo.LookupOutput(op)
		if err != nil {
			return fmt.Errorf("failed to read unspent output %s: %w", op, err)
		}
		if got == nil || got.Amount != want.Amount || !bytes.Equal(got.Address, want.Address) {
			return fmt.Errorf("unspent output %s does not match the replayed ledger", op)
		}
	}

	stored, err := a.repo.AllUnspent()
	if err != nil {
		return fmt.Errorf("failed to read unspent outputs: %w", err)
	}
	for _, u := range stored {
		op := models.OutPoint{TransactionID: u.TransactionID, Index: u.Index}
		if _, ok := view[op]; !ok {
			return fmt.Errorf("stored unspent output %s is not in the replayed ledger", op)
		}
	}
	return nil
}

func (a *Auditor) atTip(index int64) bool {
	tip := a.repo.Tip()
	return tip != nil && tip.Index == index
}

func checkLink(prev, block *models.Block) error {
	if prev == nil {
		if !block.IsGenesis() {
			return fmt.Errorf("block %d: log does not start with a genesis block", block.Index)
		}
		return nil
	}
	if block.Index != prev.Index+1 {
		return &models.ChainLinkageError{
			Field:    "index",
			Expected: fmt.Sprint(prev.Index + 1),
			Got:      fmt.Sprint(block.Index),
		}
	}
	if !bytes.Equal(block.PreviousHash, prev.Hash) {
		return &models.ChainLinkageError{
			Field:    "previous_hash",
			Expected: fmt.Sprintf("%x", prev.Hash),
			Got:      fmt.Sprintf("%x", block.PreviousHash),
		}
	}
	return nil
}

// Start runs an audit in the background and repeats it every interval
// until Stop or ctx is cancelled
func (a *Auditor) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = true
	ctx, a.cancel = context.WithCancel(ctx)
	a.done = make(chan struct{})
	done := a.done
	a.mu.Unlock()

	go func() {
		defer close(done)
		a.Run(ctx)
		if a.interval <= 0 {
			return
		}

		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.Run(ctx)
			}
		}
	}()
	return nil
}

// Stop cancels any running audit and waits for it to exit
func (a *Auditor) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	a.cancel()
	done := a.done
	a.mu.Unlock()

	<-done
}

// LastReport returns the most recent report, or nil before the first run
func (a *Auditor) LastReport() *Report {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.last == nil {
		return nil
	}
	r := *a.last
	return &r
}
