package monitoring

import (
	"vlsnet/internal/core/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	// Gauges
	chatConnections prometheus.Gauge

	// Counters
	connectionsTotal  prometheus.Counter
	messagesBroadcast prometheus.Counter
	messagesDropped   *prometheus.CounterVec
	persistFailures   prometheus.Counter
	subscribersPruned prometheus.Counter
	loginOutcomes     *prometheus.CounterVec
	lockoutsTriggered prometheus.Counter

	// Histograms
	broadcastFanout prometheus.Histogram
}

var (
	_ ports.ChatMetrics = (*PrometheusCollector)(nil)
	_ ports.AuthMetrics = (*PrometheusCollector)(nil)
)

// NewPrometheusCollector registers the chat and auth metrics on reg. When
// activeStreams is non-nil it is exported as the number of streams with at
// least one chat subscriber.
func NewPrometheusCollector(reg prometheus.Registerer, activeStreams func() int) *PrometheusCollector {
	factory := promauto.With(reg)

	if activeStreams != nil {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "vlsnet_chat_streams_active",
			Help: "Number of streams with at least one chat subscriber",
		}, func() float64 { return float64(activeStreams()) })
	}

	return &PrometheusCollector{
		chatConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "vlsnet_chat_connections_active",
			Help: "Number of open chat websocket connections",
		}),

		connectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "vlsnet_chat_connections_total",
			Help: "Total number of chat websocket connections accepted",
		}),

		messagesBroadcast: factory.NewCounter(prometheus.CounterOpts{
			Name: "vlsnet_chat_messages_broadcast_total",
			Help: "Total number of chat messages persisted and broadcast",
		}),

		messagesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vlsnet_chat_messages_dropped_total",
			Help: "Total number of inbound chat messages dropped",
		}, []string{"reason"}),

		persistFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "vlsnet_chat_persist_failures_total",
			Help: "Total number of chat messages that failed to persist",
		}),

		subscribersPruned: factory.NewCounter(prometheus.CounterOpts{
			Name: "vlsnet_chat_subscribers_pruned_total",
			Help: "Total number of subscribers removed after a failed delivery",
		}),

		loginOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vlsnet_auth_login_total",
			Help: "Login attempts by outcome",
		}, []string{"outcome"}),

		lockoutsTriggered: factory.NewCounter(prometheus.CounterOpts{
			Name: "vlsnet_auth_lockouts_total",
			Help: "Total number of account lockouts triggered",
		}),

		broadcastFanout: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "vlsnet_chat_broadcast_deliveries",
			Help:    "Number of successful deliveries per broadcast",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}
}

func (p *PrometheusCollector) ConnectionOpened() {
	p.chatConnections.Inc()
	p.connectionsTotal.Inc()
}

func (p *PrometheusCollector) ConnectionClosed() {
	p.chatConnections.Dec()
}

func (p *PrometheusCollector) MessageBroadcast(deliveries int) {
	p.messagesBroadcast.Inc()
	p.broadcastFanout.Observe(float64(deliveries))
}

func (p *PrometheusCollector) MessageDropped(reason string) {
	p.messagesDropped.WithLabelValues(reason).Inc()
}

func (p *PrometheusCollector) PersistFailed() {
	p.persistFailures.Inc()
}

func (p *PrometheusCollector) SubscriberPruned() {
	p.subscribersPruned.Inc()
}

func (p *PrometheusCollector) LoginOutcome(outcome string) {
	p.loginOutcomes.WithLabelValues(outcome).Inc()
}

func (p *PrometheusCollector) LockoutTriggered() {
	p.lockoutsTriggered.Inc()
}
