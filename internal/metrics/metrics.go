package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeReplayed = "replayed"
)

// Metrics holds the Prometheus collectors of the account service.
type Metrics struct {
	AccountsOpened       *prometheus.CounterVec
	OpeningsRejected     *prometheus.CounterVec
	Movements            *prometheus.CounterVec
	EventPublishFailures prometheus.Counter
}

// New registers the collectors on reg. Tests pass a fresh registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AccountsOpened: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bank_accounts_opened_total",
			Help: "Accounts opened, by account type",
		}, []string{"account_type"}),
		OpeningsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bank_account_openings_rejected_total",
			Help: "Account openings rejected, by reason",
		}, []string{"reason"}),
		Movements: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bank_movements_total",
			Help: "Movements processed, by operation and outcome",
		}, []string{"operation", "outcome"}),
		EventPublishFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "bank_movement_event_publish_failures_total",
			Help: "Movement events that could not be published",
		}),
	}
}

func (m *Metrics) AccountOpened(accountType string) {
	if m == nil {
		return
	}
	m.AccountsOpened.WithLabelValues(accountType).Inc()
}

func (m *Metrics) OpeningRejected(reason string) {
	if m == nil {
		return
	}
	m.OpeningsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) Movement(operation, outcome string) {
	if m == nil {
		return
	}
	m.Movements.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) PublishFailed(error) {
	if m == nil {
		return
	}
	m.EventPublishFailures.Inc()
}
