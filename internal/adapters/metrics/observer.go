// Package metrics exports upload events as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bft-labs/termstream/pkg/streaming"
)

const namespace = "termstream"

// Observer records upload events. It implements streaming.EventHandler and
// may be shared by many problems.
type Observer struct {
	chunksUploaded   prometheus.Counter
	bytesUploaded    prometheus.Counter
	termsUploaded    prometheus.Counter
	objectsCommitted prometheus.Counter
	uploadErrors     *prometheus.CounterVec
	activeWorkers    prometheus.Gauge
	chunkDuration    prometheus.Histogram
	uploadDuration   prometheus.Histogram
}

var _ streaming.EventHandler = (*Observer)(nil)

// NewObserver creates an observer and registers its collectors with reg.
// reg may be nil, in which case the collectors are left unregistered.
func NewObserver(reg prometheus.Registerer) (*Observer, error) {
	o := &Observer{
		chunksUploaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_uploaded_total",
			Help:      "Chunks appended to object storage.",
		}),
		bytesUploaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_uploaded_total",
			Help:      "Bytes appended to object storage, after compression.",
		}),
		termsUploaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "terms_uploaded_total",
			Help:      "Terms written into appended chunks.",
		}),
		objectsCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "objects_committed_total",
			Help:      "Problems sealed and committed.",
		}),
		uploadErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_errors_total",
			Help:      "Failed uploads by the stage that failed.",
		}, []string{"stage"}),
		activeWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_workers",
			Help:      "Upload workers between their first batch and a terminal state.",
		}),
		chunkDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chunk_append_duration_seconds",
			Help:      "Time spent appending one chunk.",
			Buckets:   prometheus.DefBuckets,
		}),
		uploadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_duration_seconds",
			Help:      "Time from the first batch to the commit.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
	}

	if reg != nil {
		for _, c := range o.collectors() {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return o, nil
}

func (o *Observer) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		o.chunksUploaded,
		o.bytesUploaded,
		o.termsUploaded,
		o.objectsCommitted,
		o.uploadErrors,
		o.activeWorkers,
		o.chunkDuration,
		o.uploadDuration,
	}
}

func (o *Observer) OnStateChange(e streaming.StateChangeEvent) {
	switch {
	case e.Current == streaming.StateActive:
		o.activeWorkers.Inc()
	case e.Previous != streaming.StateIdle && (e.Current == streaming.StateDone || e.Current == streaming.StateFailed):
		o.activeWorkers.Dec()
	}
}

func (o *Observer) OnChunkUploaded(e streaming.ChunkUploadedEvent) {
	o.chunksUploaded.Inc()
	o.bytesUploaded.Add(float64(e.Bytes))
	o.termsUploaded.Add(float64(e.Terms))
	o.chunkDuration.Observe(e.Duration.Seconds())
}

func (o *Observer) OnCommitted(e streaming.CommittedEvent) {
	o.objectsCommitted.Inc()
	o.uploadDuration.Observe(e.Duration.Seconds())
}

func (o *Observer) OnUploadError(e streaming.UploadErrorEvent) {
	o.uploadErrors.WithLabelValues(e.Stage).Inc()
}
