package lifecycle

import (
	"Zyncrate/internal/storage"
	"Zyncrate/model"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"gorm.io/gorm"
)

const (
	ReasonExpired   = "expired"
	ReasonExhausted = "exhausted"
	ReasonManual    = "manual"

	defaultExpiryHours = 24
	defaultLockTTL     = 30 * time.Second
	maxKeyAttempts     = 3
	deleteLockPrefix   = "lock:file:delete:"
)

// Limits are the per-plan ceilings applied to one Create call.
type Limits struct {
	MaxUploadSizeBytes int64
	MaxExpiryHours     int
}

// Actor identifies who is acting, for ownership and analytics.
type Actor struct {
	UserID         *uint64
	GuestSessionID *uint64
	IPAddress      string
	UserAgent      string
}

// CreateRequest describes one upload.
type CreateRequest struct {
	Content      io.Reader
	FileName     string
	MimeType     string
	Size         int64
	ExpiryHours  int
	MaxDownloads int
	OneTime      bool
	// LockSecret locks the file when set and non-empty.
	LockSecret *string
	Owner      Actor
	Limits     Limits
}

// Deps are the collaborators of a Manager. Repo and Store are required.
type Deps struct {
	Repo       FileRepository
	Store      storage.Store
	Analytics  AnalyticsSink
	Locker     Locker
	Dispatcher Dispatcher
	Expiry     ExpiryScheduler
	Clock      Clock
}

// Options tune a Manager.
type Options struct {
	DefaultExpiryHours int
	DeleteLockTTL      time.Duration
}

// Manager owns every state transition of a stored file.
type Manager struct {
	repo       FileRepository
	store      storage.Store
	analytics  AnalyticsSink
	locker     Locker
	dispatcher Dispatcher
	expiry     ExpiryScheduler
	clock      Clock

	defaultExpiryHours int
	lockTTL            time.Duration

	pending sync.WaitGroup
}

// NewManager wires a Manager. Missing optional deps fall back to in-process
// implementations.
func NewManager(deps Deps, opts Options) *Manager {
	m := &Manager{
		repo:               deps.Repo,
		store:              deps.Store,
		analytics:          deps.Analytics,
		locker:             deps.Locker,
		dispatcher:         deps.Dispatcher,
		expiry:             deps.Expiry,
		clock:              deps.Clock,
		defaultExpiryHours: opts.DefaultExpiryHours,
		lockTTL:            opts.DeleteLockTTL,
	}
	if m.locker == nil {
		m.locker = NewLocalLocker()
	}
	if m.clock == nil {
		m.clock = systemClock{}
	}
	if m.defaultExpiryHours <= 0 {
		m.defaultExpiryHours = defaultExpiryHours
	}
	if m.lockTTL <= 0 {
		m.lockTTL = defaultLockTTL
	}
	return m
}

// Create stores the content, then records its metadata. The object is
// written first so a visible row always has its bytes.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*model.File, error) {
	if req.Content == nil || req.FileName == "" || req.Size < 0 || req.MaxDownloads < 0 {
		uploadsTotal.WithLabelValues("invalid").Inc()
		return nil, ErrInvalidRequest
	}
	if req.Limits.MaxUploadSizeBytes > 0 && req.Size > req.Limits.MaxUploadSizeBytes {
		uploadsTotal.WithLabelValues("too_large").Inc()
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrFileTooLarge, req.Size, req.Limits.MaxUploadSizeBytes)
	}

	now := m.clock.Now()
	hours := m.expiryHours(req.ExpiryHours, req.Limits.MaxExpiryHours)
	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	storageKey := newStorageKey(now)
	if err := m.store.PutObject(ctx, storageKey, req.Content, req.Size, storage.PutOptions{ContentType: mimeType}); err != nil {
		uploadsTotal.WithLabelValues("fault").Inc()
		faultsTotal.WithLabelValues("create").Inc()
		return nil, fault("create", "", ErrStorageWrite, err)
	}

	file := &model.File{
		StorageKey:     storageKey,
		FileName:       req.FileName,
		MimeType:       mimeType,
		FileSize:       req.Size,
		CreatedAt:      now.UnixMilli(),
		ExpiresAt:      now.Add(time.Duration(hours) * time.Hour).UnixMilli(),
		MaxDownloads:   req.MaxDownloads,
		OneTime:        req.OneTime,
		UserID:         req.Owner.UserID,
		GuestSessionID: req.Owner.GuestSessionID,
	}
	if req.LockSecret != nil && *req.LockSecret != "" {
		file.Locked = true
		file.LockKeyHash = HashLockKey(*req.LockSecret)
	}

	var err error
	for attempt := 0; attempt < maxKeyAttempts; attempt++ {
		file.Key, err = newPublicKey()
		if err != nil {
			break
		}
		file.ID = 0
		err = m.repo.Insert(ctx, file)
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			break
		}
		log.Printf("public key collision on %s, retrying", file.Key)
	}
	if err != nil {
		// 元数据失败时回收对象
		if rmErr := m.store.RemoveObject(context.WithoutCancel(ctx), storageKey); rmErr != nil {
			log.Printf("remove object %s after failed insert: %v", storageKey, rmErr)
		}
		uploadsTotal.WithLabelValues("fault").Inc()
		faultsTotal.WithLabelValues("create").Inc()
		return nil, fault("create", "", ErrMetadataWrite, err)
	}

	m.record(ctx, file.Key, req.Owner, model.ActionUpload)
	if m.expiry != nil {
		if err := m.expiry.ScheduleExpiry(ctx, file.Key, time.UnixMilli(file.ExpiresAt)); err != nil {
			log.Printf("schedule expiry for %s: %v", file.Key, err)
		}
	}
	uploadsTotal.WithLabelValues("ok").Inc()
	return file, nil
}

func (m *Manager) expiryHours(requested, maxHours int) int {
	hours := requested
	if hours <= 0 {
		hours = m.defaultExpiryHours
	}
	if hours < 1 {
		hours = 1
	}
	if maxHours > 0 && hours > maxHours {
		hours = maxHours
	}
	return hours
}

// Resolve looks a key up without side effects. Tombstoned files are
// NotFound.
func (m *Manager) Resolve(ctx context.Context, key string) (Decision, error) {
	file, err := m.repo.FindLive(ctx, key)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Decision{Outcome: OutcomeNotFound}, nil
	}
	if err != nil {
		faultsTotal.WithLabelValues("resolve").Inc()
		return Decision{}, fault("resolve", key, ErrMetadataRead, err)
	}
	return Decision{Outcome: OutcomeOK, File: file}, nil
}

// Authorize decides whether a download may proceed without counting it.
// Checks run in order: existence, expiry, lock, limit. An expired file is
// handed off for deletion.
func (m *Manager) Authorize(ctx context.Context, key string, secret *string) (Decision, error) {
	d, err := m.authorize(ctx, key, secret)
	if err != nil {
		return d, err
	}
	decisionsTotal.WithLabelValues("authorize", d.Outcome.String()).Inc()
	return d, nil
}

func (m *Manager) authorize(ctx context.Context, key string, secret *string) (Decision, error) {
	d, err := m.Resolve(ctx, key)
	if err != nil || d.Outcome != OutcomeOK {
		return d, err
	}
	file := d.File
	if file.ExpiredAt(m.nowMs()) {
		m.dispatchDelete(ctx, key, ReasonExpired)
		return Decision{Outcome: OutcomeExpired, File: file}, nil
	}
	if file.Locked && (secret == nil || !VerifyLockKey(*secret, file.LockKeyHash)) {
		return Decision{Outcome: OutcomeUnauthorized, File: file}, nil
	}
	if file.Exhausted() {
		return Decision{Outcome: OutcomeLimitReached, File: file}, nil
	}
	return d, nil
}

// Consume counts one download and returns the content stream. The count is
// taken with a single conditional update so concurrent callers can never go
// past the ceiling. Callers run Authorize first; Consume does not check the
// lock secret.
func (m *Manager) Consume(ctx context.Context, key string, actor Actor) (*Download, error) {
	d, err := m.consume(ctx, key, actor)
	if err != nil {
		faultsTotal.WithLabelValues("consume").Inc()
		return nil, err
	}
	decisionsTotal.WithLabelValues("consume", d.Outcome.String()).Inc()
	return d, nil
}

func (m *Manager) consume(ctx context.Context, key string, actor Actor) (*Download, error) {
	d, err := m.Resolve(ctx, key)
	if err != nil {
		return nil, err
	}
	if d.Outcome != OutcomeOK {
		return &Download{Decision: d}, nil
	}
	file := d.File
	if file.ExpiredAt(m.nowMs()) {
		m.dispatchDelete(ctx, key, ReasonExpired)
		return &Download{Decision: Decision{Outcome: OutcomeExpired, File: file}}, nil
	}

	body, info, err := m.store.GetObject(ctx, file.StorageKey)
	if errors.Is(err, storage.ErrObjectNotFound) {
		log.Printf("object %s missing for live file %s", file.StorageKey, key)
		return nil, fault("consume", key, ErrObjectMissing, err)
	}
	if err != nil {
		return nil, fault("consume", key, ErrStorageRead, err)
	}

	counted, err := m.repo.IncrementDownload(ctx, key, m.nowMs())
	if err != nil {
		_ = body.Close()
		return nil, fault("consume", key, ErrMetadataWrite, err)
	}
	if !counted {
		_ = body.Close()
		return m.classifyRefused(ctx, key)
	}

	after, err := m.repo.Find(ctx, key)
	if err != nil {
		log.Printf("reload %s after count: %v", key, err)
		copied := *file
		copied.DownloadCount++
		after = &copied
	}
	m.record(ctx, key, actor, model.ActionDownload)
	downloadBytesTotal.Add(float64(info.Size))

	dl := &Download{
		Decision: Decision{Outcome: OutcomeOK, File: after},
		Body:     body,
		Info:     info,
	}
	if after.Exhausted() {
		dl.Exhausted = true
		dl.Body = &exhaustingBody{
			ReadCloser: body,
			onClose: func() {
				if _, err := m.Delete(context.WithoutCancel(ctx), key, ReasonExhausted); err != nil {
					log.Printf("delete exhausted file %s: %v", key, err)
				}
			},
		}
	}
	return dl, nil
}

// classifyRefused explains why the conditional update matched no row.
func (m *Manager) classifyRefused(ctx context.Context, key string) (*Download, error) {
	file, err := m.repo.Find(ctx, key)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Download{Decision: Decision{Outcome: OutcomeNotFound}}, nil
	}
	if err != nil {
		return nil, fault("consume", key, ErrMetadataRead, err)
	}
	switch {
	case file.IsDeleted:
		return &Download{Decision: Decision{Outcome: OutcomeNotFound}}, nil
	case file.ExpiredAt(m.nowMs()):
		m.dispatchDelete(ctx, key, ReasonExpired)
		return &Download{Decision: Decision{Outcome: OutcomeExpired, File: file}}, nil
	default:
		return &Download{Decision: Decision{Outcome: OutcomeLimitReached, File: file}}, nil
	}
}

type exhaustingBody struct {
	io.ReadCloser
	once    sync.Once
	onClose func()
}

func (b *exhaustingBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.onClose)
	return err
}

func (m *Manager) record(ctx context.Context, key string, actor Actor, action string) {
	if m.analytics == nil {
		return
	}
	event := &model.AnalyticsEvent{
		FileKey:        key,
		UserID:         actor.UserID,
		GuestSessionID: actor.GuestSessionID,
		Action:         action,
		Timestamp:      m.nowMs(),
		IPAddress:      actor.IPAddress,
		UserAgent:      actor.UserAgent,
	}
	if err := m.analytics.Record(ctx, event); err != nil {
		log.Printf("record %s event for %s: %v", action, key, err)
	}
}

func (m *Manager) nowMs() int64 {
	return m.clock.Now().UnixMilli()
}
