package media

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts gateway operations by op and result.
type Metrics struct {
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the gateway collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ops: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mute",
			Subsystem: "media",
			Name:      "operations_total",
			Help:      "Media host operations by op and result.",
		}, []string{"op", "result"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mute",
			Subsystem: "media",
			Name:      "operation_duration_seconds",
			Help:      "Latency of media host operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}
}

func (m *Metrics) observe(op string, start time.Time, ok bool, err error) {
	result := "ok"
	switch {
	case err != nil:
		result = "error"
	case !ok:
		result = "skipped"
	}
	m.ops.WithLabelValues(op, result).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

type instrumented struct {
	next Gateway
	m    *Metrics
}

// Instrument wraps g so every operation is recorded in m.
func Instrument(g Gateway, m *Metrics) Gateway {
	if m == nil {
		return g
	}
	return &instrumented{next: g, m: m}
}

func (i *instrumented) Upload(ctx context.Context, f File) (Upload, error) {
	start := time.Now()
	up, err := i.next.Upload(ctx, f)
	i.m.observe("upload", start, true, err)
	return up, err
}

func (i *instrumented) Delete(ctx context.Context, url string) (bool, error) {
	start := time.Now()
	ok, err := i.next.Delete(ctx, url)
	i.m.observe("delete", start, ok, err)
	return ok, err
}

func (i *instrumented) Destroy(ctx context.Context, ref Ref) (bool, error) {
	start := time.Now()
	ok, err := i.next.Destroy(ctx, ref)
	i.m.observe("destroy", start, ok, err)
	return ok, err
}

func (i *instrumented) Recognizes(url string) bool {
	return i.next.Recognizes(url)
}
