package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gym"

const (
	SendKindFree       = "free"
	SendKindContracted = "contracted"
	SendKindTrainer    = "trainer"
)

// Metrics holds the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry        *prometheus.Registry
	messagesSent    *prometheus.CounterVec
	quotaDenied     prometheus.Counter
	quotaResets     prometheus.Counter
	likeToggles     *prometheus.CounterVec
	likesReconciled prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		messagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "messages_sent_total",
			Help:      "Messages accepted, by how the send was authorised.",
		}, []string{"kind"}),
		quotaDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "quota_denied_total",
			Help:      "Client sends rejected because the free quota was used up.",
		}),
		quotaResets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "quota_resets_total",
			Help:      "Quota rows reset at a period boundary.",
		}),
		likeToggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "posts",
			Name:      "like_toggles_total",
			Help:      "Like toggles, by resulting action.",
		}, []string{"action"}),
		likesReconciled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "posts",
			Name:      "likes_reconciled_total",
			Help:      "Posts whose likes_count was corrected from post_likes.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.messagesSent,
		m.quotaDenied,
		m.quotaResets,
		m.likeToggles,
		m.likesReconciled,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) MessageSent(kind string) {
	if m == nil {
		return
	}
	m.messagesSent.WithLabelValues(kind).Inc()
}

func (m *Metrics) QuotaDenied() {
	if m == nil {
		return
	}
	m.quotaDenied.Inc()
}

func (m *Metrics) QuotasReset(count int64) {
	if m == nil || count <= 0 {
		return
	}
	m.quotaResets.Add(float64(count))
}

func (m *Metrics) LikeToggled(liked bool) {
	if m == nil {
		return
	}
	action := "unlike"
	if liked {
		action = "like"
	}
	m.likeToggles.WithLabelValues(action).Inc()
}

func (m *Metrics) LikesReconciled(count int64) {
	if m == nil || count <= 0 {
		return
	}
	m.likesReconciled.Add(float64(count))
}
