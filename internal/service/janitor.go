package service

import (
	"Zyncrate/internal/lifecycle"
	"context"
	"errors"
	"log"
	"time"
)

// Sweeper is the part of the lifecycle manager that cleans up.
type Sweeper interface {
	Sweep(ctx context.Context, limit int) (lifecycle.SweepReport, error)
	ReconcileOrphans(ctx context.Context, grace time.Duration) (lifecycle.OrphanReport, error)
}

// GuestPurger removes expired guest sessions.
type GuestPurger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// CleanupReport is the outcome of one janitor pass.
type CleanupReport struct {
	Sweep        lifecycle.SweepReport  `json:"sweep"`
	Orphans      lifecycle.OrphanReport `json:"orphans"`
	GuestsPurged int64                  `json:"guests_purged"`
}

// Janitor runs the periodic cleanup: expiry sweep, orphan reconciliation and
// guest session purge. Each step runs even when an earlier one fails.
type Janitor struct {
	files  Sweeper
	guests GuestPurger
	batch  int
	grace  time.Duration
}

// NewJanitor creates a Janitor. guests may be nil.
func NewJanitor(files Sweeper, guests GuestPurger, batch int, grace time.Duration) *Janitor {
	return &Janitor{files: files, guests: guests, batch: batch, grace: grace}
}

// Run performs one pass.
func (j *Janitor) Run(ctx context.Context) (CleanupReport, error) {
	var report CleanupReport
	var errs []error

	sweep, err := j.files.Sweep(ctx, j.batch)
	report.Sweep = sweep
	if err != nil {
		errs = append(errs, err)
	}

	orphans, err := j.files.ReconcileOrphans(ctx, j.grace)
	report.Orphans = orphans
	if err != nil {
		errs = append(errs, err)
	}

	if j.guests != nil {
		purged, err := j.guests.DeleteExpired(ctx, time.Now())
		report.GuestsPurged = purged
		if err != nil {
			errs = append(errs, err)
		}
	}
	return report, errors.Join(errs...)
}

// Start runs a pass every interval until ctx is done.
func (j *Janitor) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		log.Println("[janitor] disabled")
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := j.Run(ctx); err != nil {
					log.Printf("[janitor] pass failed: %v", err)
				}
			}
		}
	}()
}
