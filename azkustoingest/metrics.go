package azkustoingest

import (
	"github.com/Azure/azure-kusto-ingest-go/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "kusto_ingest"

// metrics is nil when WithMetrics was not given. Every method is a no-op on a nil receiver.
type metrics struct {
	fetches  *prometheus.CounterVec
	items    *prometheus.CounterVec
	uploaded prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		fetches: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "resource_fetches_total",
				Help:      "Number of times ingestion resources were fetched from the resource authority",
			},
			[]string{"result"},
		),
		items: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "items_total",
				Help:      "Number of items ingested, by entry point, last stage and error kind",
			},
			[]string{"op", "stage", "kind"},
		),
		uploaded: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "uploaded_bytes_total",
				Help:      "Number of bytes written to blob storage",
			},
		),
	}
}

func (m *metrics) observeFetch(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.fetches.WithLabelValues(result).Inc()
}

func (m *metrics) observeItem(op errors.Op, item ItemResult) {
	if m == nil {
		return
	}
	kind := "none"
	if item.Err != nil {
		kind = errors.KindOf(item.Err).String()
	}
	m.items.WithLabelValues(op.String(), item.Stage.String(), kind).Inc()
}

func (m *metrics) observeUpload(size int64) {
	if m == nil {
		return
	}
	m.uploaded.Add(float64(size))
}
