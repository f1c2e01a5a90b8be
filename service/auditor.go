/*
auditor.go - Background journal verification

PURPOSE:
  Periodically re-verifies the stored hash chain so that tampering with
  the database (edited events, dropped rows) is noticed without waiting
  for someone to call GET /api/journal.

DESIGN:
  - Runs a background goroutine with a configurable check interval
  - Verifies once immediately on Start
  - Keeps the result of the latest run for health reporting

USAGE:
  auditor := service.NewAuditor(svc, logger)
  auditor.Start()
  defer auditor.Stop()
*/
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// AuditStatus is the outcome of the latest verification.
type AuditStatus struct {
	CheckedAt time.Time `json:"checked_at"`
	Entries   uint64    `json:"entries"`
	Err       error     `json:"-"`
}

func (a AuditStatus) OK() bool { return a.Err == nil && !a.CheckedAt.IsZero() }

// Auditor verifies a service's journal on a timer.
type Auditor struct {
	Service       *Service
	CheckInterval time.Duration
	Enabled       bool
	Logger        *slog.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	statusMu sync.RWMutex
	status   AuditStatus
}

func NewAuditor(s *Service, logger *slog.Logger) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{
		Service:       s,
		CheckInterval: time.Hour,
		Enabled:       true,
		Logger:        logger,
	}
}

// Start begins periodic verification.
func (a *Auditor) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.Enabled {
		a.Logger.Info("journal auditor disabled")
		return
	}
	if a.ticker != nil {
		return
	}

	a.ticker = time.NewTicker(a.CheckInterval)
	a.stop = make(chan struct{})
	a.wg.Add(1)
	go a.run(a.ticker, a.stop)

	a.Logger.Info("journal auditor started", "interval", a.CheckInterval)
}

// Stop halts verification and waits for a running check to finish.
func (a *Auditor) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ticker == nil {
		return
	}
	a.ticker.Stop()
	close(a.stop)
	a.wg.Wait()
	a.ticker = nil
	a.Logger.Info("journal auditor stopped")
}

func (a *Auditor) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer a.wg.Done()

	a.Check(context.Background())
	for {
		select {
		case <-ticker.C:
			a.Check(context.Background())
		case <-stop:
			return
		}
	}
}

// Check verifies the journal once and records the outcome.
func (a *Auditor) Check(ctx context.Context) AuditStatus {
	st := AuditStatus{CheckedAt: a.Service.Now()}
	if head := a.Service.Head(); head != nil {
		st.Entries = head.Seq
	}
	st.Err = a.Service.Verify(ctx)

	if st.Err != nil {
		a.Logger.Error("journal verification failed", "entries", st.Entries, "error", st.Err)
	} else {
		a.Logger.Debug("journal verified", "entries", st.Entries)
	}

	a.statusMu.Lock()
	a.status = st
	a.statusMu.Unlock()
	return st
}

// Status returns the latest recorded outcome.
func (a *Auditor) Status() AuditStatus {
	a.statusMu.RLock()
	defer a.statusMu.RUnlock()
	return a.status
}
