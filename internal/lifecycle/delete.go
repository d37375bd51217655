package lifecycle

import (
	"Zyncrate/internal/storage"
	"context"
	"errors"
	"log"

	"gorm.io/gorm"
)

// Delete runs the deletion transition for key: remove the object, then
// tombstone the row. It returns true only for the caller whose tombstone
// took effect; absent, already deleted or concurrently deleting keys are a
// no-op.
func (m *Manager) Delete(ctx context.Context, key, reason string) (bool, error) {
	release, ok, err := m.locker.TryLock(ctx, deleteLockPrefix+key, m.lockTTL)
	if err != nil {
		// 锁服务不可用时继续，墓碑更新本身是条件更新
		log.Printf("delete lock for %s unavailable: %v", key, err)
	} else if !ok {
		return false, nil
	} else {
		defer release()
	}

	file, err := m.repo.Find(ctx, key)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		faultsTotal.WithLabelValues("delete").Inc()
		return false, fault("delete", key, ErrMetadataRead, err)
	}
	if file.IsDeleted {
		return false, nil
	}

	if err := m.store.RemoveObject(ctx, file.StorageKey); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		// the row is still tombstoned; the blob is left for orphan reconciliation
		log.Printf("remove object %s for %s: %v", file.StorageKey, key, err)
	}

	done, err := m.repo.Tombstone(ctx, key, m.nowMs(), reason)
	if err != nil {
		faultsTotal.WithLabelValues("delete").Inc()
		return false, fault("delete", key, ErrMetadataWrite, err)
	}
	if done {
		deletionsTotal.WithLabelValues(reason).Inc()
		log.Printf("file %s deleted (%s)", key, reason)
	}
	return done, nil
}

// dispatchDelete hands deletion to the dispatcher and falls back to a local
// goroutine when there is none or it refuses.
func (m *Manager) dispatchDelete(ctx context.Context, key, reason string) {
	if m.dispatcher != nil {
		err := m.dispatcher.DispatchDelete(ctx, key, reason)
		if err == nil {
			return
		}
		log.Printf("dispatch delete %s: %v, deleting in process", key, err)
	}
	detached := context.WithoutCancel(ctx)
	m.pending.Add(1)
	go func() {
		defer m.pending.Done()
		if _, err := m.Delete(detached, key, reason); err != nil {
			log.Printf("async delete %s: %v", key, err)
		}
	}()
}

// Expire hands key to deletion once it is past its expiry. Expiry hints can
// arrive early or twice; both are no-ops.
func (m *Manager) Expire(ctx context.Context, key string) error {
	d, err := m.Resolve(ctx, key)
	if err != nil || d.Outcome != OutcomeOK {
		return err
	}
	if !d.File.ExpiredAt(m.nowMs()) {
		return nil
	}
	m.dispatchDelete(ctx, key, ReasonExpired)
	return nil
}

// Drain waits for in-process deletions started by this Manager.
func (m *Manager) Drain() {
	m.pending.Wait()
}
