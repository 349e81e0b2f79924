package metrics

import "github.com/prometheus/client_golang/prometheus"

// PipelineMetrics tracks the outbox relay, the activation consumer, and the
// email sender.
type PipelineMetrics struct {
	published *prometheus.CounterVec
	consumed  *prometheus.CounterVec
	emails    *prometheus.CounterVec
}

// NewPipelineMetrics registers the pipeline metrics on the provided registerer.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		return &PipelineMetrics{}
	}
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_published_total",
		Help: "Outbox events by publish outcome.",
	}, []string{"outcome"})
	consumed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "activation_messages_consumed_total",
		Help: "Activation messages by consume outcome.",
	}, []string{"outcome"})
	emails := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "activation_emails_total",
		Help: "Activation email sends by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(published, consumed, emails)
	return &PipelineMetrics{
		published: published,
		consumed:  consumed,
		emails:    emails,
	}
}

// IncPublished counts a relay publish attempt with the given outcome
// (sent, retried, failed).
func (p *PipelineMetrics) IncPublished(outcome string) {
	if p == nil || p.published == nil {
		return
	}
	p.published.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncConsumed counts a consumed message with the given outcome
// (processed, duplicate, rejected).
func (p *PipelineMetrics) IncConsumed(outcome string) {
	if p == nil || p.consumed == nil {
		return
	}
	p.consumed.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncEmail counts an email send attempt with the given outcome (sent, failed).
func (p *PipelineMetrics) IncEmail(outcome string) {
	if p == nil || p.emails == nil {
		return
	}
	p.emails.WithLabelValues(normalizeLabel(outcome)).Inc()
}
