package lifecycle

import (
	"Zyncrate/internal/storage"
	"context"
	"errors"
	"log"
	"time"
)

// SweepReport summarises one sweep pass.
type SweepReport struct {
	Scanned int `json:"scanned"`
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

// OrphanReport summarises one orphan reconciliation pass.
type OrphanReport struct {
	Scanned int `json:"scanned"`
	Removed int `json:"removed"`
	Failed  int `json:"failed"`
}

// Sweep deletes up to limit expired, non-tombstoned files. A failure on one
// file is counted and the pass moves on.
func (m *Manager) Sweep(ctx context.Context, limit int) (SweepReport, error) {
	var report SweepReport
	files, err := m.repo.ListExpired(ctx, m.nowMs(), limit)
	if err != nil {
		faultsTotal.WithLabelValues("sweep").Inc()
		return report, fault("sweep", "", ErrMetadataRead, err)
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Scanned++
		deleted, err := m.Delete(ctx, f.Key, ReasonExpired)
		if err != nil {
			report.Failed++
			log.Printf("sweep %s: %v", f.Key, err)
			continue
		}
		if deleted {
			report.Deleted++
		}
	}
	log.Printf("sweep done: scanned=%d deleted=%d failed=%d", report.Scanned, report.Deleted, report.Failed)
	return report, nil
}

// ReconcileOrphans removes stored objects older than grace that no live row
// references. The grace period covers uploads whose row is not yet written.
func (m *Manager) ReconcileOrphans(ctx context.Context, grace time.Duration) (OrphanReport, error) {
	var report OrphanReport
	cutoff := m.clock.Now().Add(-grace)
	err := m.store.ListObjects(ctx, storageKeyPrefix, func(info storage.ObjectInfo) error {
		report.Scanned++
		if info.LastModified.After(cutoff) {
			return nil
		}
		live, err := m.repo.HasLiveStorageKey(ctx, info.ObjectName)
		if err != nil {
			report.Failed++
			log.Printf("check orphan %s: %v", info.ObjectName, err)
			return nil
		}
		if live {
			return nil
		}
		if err := m.store.RemoveObject(ctx, info.ObjectName); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			report.Failed++
			log.Printf("remove orphan %s: %v", info.ObjectName, err)
			return nil
		}
		report.Removed++
		orphansRemovedTotal.Inc()
		return nil
	})
	if err != nil {
		faultsTotal.WithLabelValues("reconcile").Inc()
		return report, fault("reconcile", "", ErrStorageRead, err)
	}
	log.Printf("orphan reconcile done: scanned=%d removed=%d failed=%d", report.Scanned, report.Removed, report.Failed)
	return report, nil
}
