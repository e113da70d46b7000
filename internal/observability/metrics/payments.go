package metrics

import "github.com/prometheus/client_golang/prometheus"

// PaymentMetrics counts payment-provider webhook deliveries.
type PaymentMetrics struct {
	webhookEvents *prometheus.CounterVec
}

func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	m := &PaymentMetrics{
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "consult",
			Subsystem: "payments",
			Name:      "webhook_events_total",
			Help:      "Payment webhook events by provider, event type and outcome",
		}, []string{"provider", "event_type", "outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.webhookEvents)
	return m
}

func (m *PaymentMetrics) ObserveWebhook(provider, eventType, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(provider, eventType, outcome).Inc()
}
