package storage

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryObject struct {
	data []byte
	info ObjectInfo
}

// MemoryStore keeps objects in process memory. Used for local runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	now     func() time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]memoryObject),
		now:     time.Now,
	}
}

// PutObject stores a copy of reader's content.
func (s *MemoryStore) PutObject(ctx context.Context, object string, reader io.Reader, size int64, opts PutOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[object] = memoryObject{
		data: data,
		info: ObjectInfo{
			ObjectName:   object,
			Size:         int64(len(data)),
			ContentType:  opts.ContentType,
			LastModified: s.now(),
		},
	}
	return nil
}

// GetObject returns a reader over a snapshot of the object.
func (s *MemoryStore) GetObject(ctx context.Context, object string) (io.ReadCloser, ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, ObjectInfo{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[object]
	if !ok {
		return nil, ObjectInfo{}, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), obj.info, nil
}

// RemoveObject deletes an object; missing keys report ErrObjectNotFound.
func (s *MemoryStore) RemoveObject(ctx context.Context, object string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[object]; !ok {
		return ErrObjectNotFound
	}
	delete(s.objects, object)
	return nil
}

// ListObjects walks objects under prefix in name order.
func (s *MemoryStore) ListObjects(ctx context.Context, prefix string, fn func(ObjectInfo) error) error {
	s.mu.RLock()
	infos := make([]ObjectInfo, 0, len(s.objects))
	for name, obj := range s.objects {
		if strings.HasPrefix(name, prefix) {
			infos = append(infos, obj.info)
		}
	}
	s.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].ObjectName < infos[j].ObjectName })
	for _, info := range infos {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(info); err != nil {
			return err
		}
	}
	return nil
}

// Has reports whether object exists.
func (s *MemoryStore) Has(object string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[object]
	return ok
}

// Len returns the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// SetClock overrides the LastModified source.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}
