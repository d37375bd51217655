package service

import (
	"Zyncrate/internal/lifecycle"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type stubSweeper struct {
	sweepErr  error
	orphanErr error
	gotLimit  int
	gotGrace  time.Duration
}

func (s *stubSweeper) Sweep(_ context.Context, limit int) (lifecycle.SweepReport, error) {
	s.gotLimit = limit
	return lifecycle.SweepReport{Scanned: 2, Deleted: 2}, s.sweepErr
}

func (s *stubSweeper) ReconcileOrphans(_ context.Context, grace time.Duration) (lifecycle.OrphanReport, error) {
	s.gotGrace = grace
	return lifecycle.OrphanReport{Scanned: 5, Removed: 1}, s.orphanErr
}

type stubPurger struct{ n int64 }

func (p stubPurger) DeleteExpired(context.Context, time.Time) (int64, error) { return p.n, nil }

func TestJanitorRun(t *testing.T) {
	files := &stubSweeper{}
	j := NewJanitor(files, stubPurger{n: 3}, 100, time.Hour)

	report, err := j.Run(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 100, files.gotLimit)
	assert.Equal(t, time.Hour, files.gotGrace)
	assert.Equal(t, 2, report.Sweep.Deleted)
	assert.Equal(t, 1, report.Orphans.Removed)
	assert.Equal(t, int64(3), report.GuestsPurged)
}

func TestJanitorKeepsGoingAfterSweepFailure(t *testing.T) {
	boom := errors.New("db down")
	files := &stubSweeper{sweepErr: boom}
	j := NewJanitor(files, nil, 10, time.Minute)

	report, err := j.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, time.Minute, files.gotGrace, "orphan pass still runs")
	assert.Equal(t, 1, report.Orphans.Removed)
}
