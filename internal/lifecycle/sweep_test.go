package lifecycle

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"Zyncrate/internal/storage"
)

func TestSweepDeletesExpiredOnly(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	short := uploadReq("short")
	short.ExpiryHours = 1
	expired := mustCreate(t, env, short)
	fresh := mustCreate(t, env, uploadReq("fresh"))
	env.clock.Advance(2 * time.Hour)

	report, err := env.mgr.Sweep(ctx, 100)
	if err != nil {
		t.Fatal(err)
	}
	if report.Scanned != 1 || report.Deleted != 1 || report.Failed != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	if d, _ := env.mgr.Resolve(ctx, expired); d.Outcome != OutcomeNotFound {
		t.Fatal("expired file should be gone")
	}
	if d, _ := env.mgr.Resolve(ctx, fresh); d.Outcome != OutcomeOK {
		t.Fatal("fresh file should survive")
	}

	again, err := env.mgr.Sweep(ctx, 100)
	if err != nil || again.Scanned != 0 {
		t.Fatalf("second sweep = %+v, %v", again, err)
	}
}

func TestSweepContinuesPastFailure(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	var keys []string
	for i := 0; i < 3; i++ {
		req := uploadReq("x")
		req.ExpiryHours = 1
		keys = append(keys, mustCreate(t, env, req))
	}
	env.repo.tombstoneErr[keys[1]] = errors.New("deadlock")
	env.clock.Advance(2 * time.Hour)

	report, err := env.mgr.Sweep(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if report.Scanned != 3 || report.Deleted != 2 || report.Failed != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestSweepListFailure(t *testing.T) {
	env := newTestEnv()
	env.repo.listErr = errors.New("db down")

	_, err := env.mgr.Sweep(context.Background(), 10)
	if !errors.Is(err, ErrMetadataRead) {
		t.Fatalf("expect ErrMetadataRead, got %v", err)
	}
}

func TestReconcileOrphans(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	live := mustCreate(t, env, uploadReq("live"))
	if err := env.store.PutObject(ctx, "files/2026/03/orphan-old", strings.NewReader("o"), 1, storage.PutOptions{}); err != nil {
		t.Fatal(err)
	}
	env.clock.Advance(2 * time.Hour)
	if err := env.store.PutObject(ctx, "files/2026/03/orphan-young", strings.NewReader("y"), 1, storage.PutOptions{}); err != nil {
		t.Fatal(err)
	}

	report, err := env.mgr.ReconcileOrphans(ctx, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if report.Scanned != 3 || report.Removed != 1 || report.Failed != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	if env.store.Has("files/2026/03/orphan-old") {
		t.Fatal("old orphan should be removed")
	}
	if !env.store.Has("files/2026/03/orphan-young") {
		t.Fatal("young orphan is inside the grace period")
	}
	if dl, err := env.mgr.Consume(ctx, live, Actor{}); err != nil || !dl.Allowed() {
		t.Fatalf("live file must keep its object: %+v, %v", dl, err)
	} else {
		readAll(t, dl)
	}
}
