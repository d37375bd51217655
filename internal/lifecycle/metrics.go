package lifecycle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zyncrate_uploads_total",
		Help: "Create calls by result",
	}, []string{"result"})

	decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zyncrate_download_decisions_total",
		Help: "Authorize and Consume outcomes",
	}, []string{"op", "outcome"})

	downloadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zyncrate_download_bytes_total",
		Help: "Bytes of objects handed out by Consume",
	})

	deletionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zyncrate_deletions_total",
		Help: "Files tombstoned by reason",
	}, []string{"reason"})

	orphansRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zyncrate_orphans_removed_total",
		Help: "Blobs removed because no live row references them",
	})

	faultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zyncrate_lifecycle_faults_total",
		Help: "Infrastructure faults by operation",
	}, []string{"op"})
)
