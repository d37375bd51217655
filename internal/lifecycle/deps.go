package lifecycle

import (
	"Zyncrate/model"
	"context"
	"sync"
	"time"
)

// FileRepository is the metadata store. Missing rows are reported with
// gorm.ErrRecordNotFound and key collisions with gorm.ErrDuplicatedKey.
type FileRepository interface {
	Insert(ctx context.Context, file *model.File) error
	// FindLive returns the row only when it is not tombstoned.
	FindLive(ctx context.Context, key string) (*model.File, error)
	// Find returns the row whatever its state.
	Find(ctx context.Context, key string) (*model.File, error)
	// IncrementDownload adds one download when the row is live, unexpired at
	// nowMs and under its ceiling, as a single conditional update. It reports
	// whether a row was changed.
	IncrementDownload(ctx context.Context, key string, nowMs int64) (bool, error)
	// Tombstone marks a live row deleted and reports whether it changed it.
	Tombstone(ctx context.Context, key string, nowMs int64, reason string) (bool, error)
	ListExpired(ctx context.Context, nowMs int64, limit int) ([]model.File, error)
	HasLiveStorageKey(ctx context.Context, storageKey string) (bool, error)
}

// AnalyticsSink appends access events. Failures never fail the caller.
type AnalyticsSink interface {
	Record(ctx context.Context, event *model.AnalyticsEvent) error
}

// Dispatcher hands a deletion to some other worker.
type Dispatcher interface {
	DispatchDelete(ctx context.Context, key, reason string) error
}

// ExpiryScheduler registers a best-effort wakeup at a file's expiry.
type ExpiryScheduler interface {
	ScheduleExpiry(ctx context.Context, key string, at time.Time) error
}

// Locker hands out named, expiring mutual exclusion. ok is false when the
// name is already held.
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (release func(), ok bool, err error)
}

// Clock is the source of now.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// LocalLocker is an in-process Locker for single-instance deployments.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
}

// NewLocalLocker returns an empty LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]time.Time)}
}

// TryLock acquires name unless another holder's lease is still valid.
func (l *LocalLocker) TryLock(_ context.Context, name string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if until, ok := l.held[name]; ok && now.Before(until) {
		return nil, false, nil
	}
	until := now.Add(ttl)
	l.held[name] = until
	release := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.held[name] == until {
			delete(l.held, name)
		}
	}
	return release, true, nil
}
