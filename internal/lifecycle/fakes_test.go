package lifecycle

import (
	"Zyncrate/internal/storage"
	"Zyncrate/model"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/gorm"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// memRepo applies the same conditions as the SQL repository under one mutex.
type memRepo struct {
	mu     sync.Mutex
	rows   map[string]*model.File
	nextID uint64

	tombstones   int
	insertErrs   []error
	tombstoneErr map[string]error
	listErr      error
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[string]*model.File), tombstoneErr: make(map[string]error)}
}

func (r *memRepo) Insert(_ context.Context, file *model.File) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.insertErrs) > 0 {
		err := r.insertErrs[0]
		r.insertErrs = r.insertErrs[1:]
		if err != nil {
			return err
		}
	}
	if _, ok := r.rows[file.Key]; ok {
		return gorm.ErrDuplicatedKey
	}
	r.nextID++
	file.ID = r.nextID
	copied := *file
	r.rows[file.Key] = &copied
	return nil
}

func (r *memRepo) FindLive(ctx context.Context, key string) (*model.File, error) {
	f, err := r.Find(ctx, key)
	if err != nil {
		return nil, err
	}
	if f.IsDeleted {
		return nil, gorm.ErrRecordNotFound
	}
	return f, nil
}

func (r *memRepo) Find(_ context.Context, key string) (*model.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.rows[key]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *f
	return &copied, nil
}

func (r *memRepo) IncrementDownload(_ context.Context, key string, nowMs int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.rows[key]
	if !ok || f.IsDeleted || f.ExpiredAt(nowMs) || f.Exhausted() {
		return false, nil
	}
	f.DownloadCount++
	return true, nil
}

func (r *memRepo) Tombstone(_ context.Context, key string, nowMs int64, reason string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.tombstoneErr[key]; err != nil {
		return false, err
	}
	f, ok := r.rows[key]
	if !ok || f.IsDeleted {
		return false, nil
	}
	f.IsDeleted = true
	f.DeletedAt = nowMs
	f.DeleteReason = reason
	r.tombstones++
	return true, nil
}

func (r *memRepo) ListExpired(_ context.Context, nowMs int64, limit int) ([]model.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []model.File
	for _, f := range r.rows {
		if !f.IsDeleted && f.ExpiresAt < nowMs {
			out = append(out, *f)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memRepo) HasLiveStorageKey(_ context.Context, storageKey string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.rows {
		if f.StorageKey == storageKey && !f.IsDeleted {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRepo) tombstoneCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tombstones
}

func (r *memRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

// countingStore wraps MemoryStore to count removals and inject failures.
type countingStore struct {
	*storage.MemoryStore
	removes atomic.Int32
	putErr  error
	getErr  error
}

func (s *countingStore) PutObject(ctx context.Context, object string, reader io.Reader, size int64, opts storage.PutOptions) error {
	if s.putErr != nil {
		return s.putErr
	}
	return s.MemoryStore.PutObject(ctx, object, reader, size, opts)
}

func (s *countingStore) GetObject(ctx context.Context, object string) (io.ReadCloser, storage.ObjectInfo, error) {
	if s.getErr != nil {
		return nil, storage.ObjectInfo{}, s.getErr
	}
	return s.MemoryStore.GetObject(ctx, object)
}

func (s *countingStore) RemoveObject(ctx context.Context, object string) error {
	err := s.MemoryStore.RemoveObject(ctx, object)
	if err == nil {
		s.removes.Add(1)
	}
	return err
}

type recordingSink struct {
	mu     sync.Mutex
	events []model.AnalyticsEvent
	err    error
}

func (s *recordingSink) Record(_ context.Context, event *model.AnalyticsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, *event)
	return nil
}

func (s *recordingSink) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Action)
	}
	return out
}

type failingDispatcher struct{ calls atomic.Int32 }

func (d *failingDispatcher) DispatchDelete(context.Context, string, string) error {
	d.calls.Add(1)
	return errors.New("broker down")
}

type testEnv struct {
	mgr   *Manager
	repo  *memRepo
	store *countingStore
	sink  *recordingSink
	clock *fakeClock
}

func newTestEnv() *testEnv {
	env := &testEnv{
		repo:  newMemRepo(),
		store: &countingStore{MemoryStore: storage.NewMemoryStore()},
		sink:  &recordingSink{},
		clock: newFakeClock(),
	}
	env.store.SetClock(env.clock.Now)
	env.mgr = NewManager(Deps{
		Repo:      env.repo,
		Store:     env.store,
		Analytics: env.sink,
		Clock:     env.clock,
	}, Options{})
	return env
}
