// Package metrics содержит счётчики prometheus реестра транзакций.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/magabrotheeeer/paywall-ledger/internal/models"
)

// Ledger считает создание и расчёт транзакций.
type Ledger struct {
	created   *prometheus.CounterVec
	settled   *prometheus.CounterVec
	revenue   *prometheus.CounterVec
	conflicts prometheus.Counter
}

// NewLedger создаёт счётчики и регистрирует их в reg.
func NewLedger(reg prometheus.Registerer) *Ledger {
	m := &Ledger{
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "paywall_transactions_created_total",
			Help: "Transactions created in pending state.",
		}, []string{"kind"}),
		settled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "paywall_transactions_settled_total",
			Help: "Transactions moved to a terminal state.",
		}, []string{"kind", "status"}),
		revenue: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "paywall_revenue_cents_total",
			Help: "Amount of completed transactions in minor currency units.",
		}, []string{"kind"}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "paywall_settlement_conflicts_total",
			Help: "Confirmations rejected because they contradict the recorded outcome.",
		}),
	}
	reg.MustRegister(m.created, m.settled, m.revenue, m.conflicts)
	return m
}

// TransactionCreated учитывает новую транзакцию.
func (m *Ledger) TransactionCreated(kind models.Kind) {
	m.created.WithLabelValues(string(kind)).Inc()
}

// TransactionSettled учитывает переход в конечное состояние. Выручка растёт только для completed.
func (m *Ledger) TransactionSettled(kind models.Kind, status models.Status, amount int64) {
	m.settled.WithLabelValues(string(kind), string(status)).Inc()
	if status == models.StatusCompleted && amount > 0 {
		m.revenue.WithLabelValues(string(kind)).Add(float64(amount))
	}
}

// SettlementConflict учитывает отклонённое противоречивое подтверждение.
func (m *Ledger) SettlementConflict() {
	m.conflicts.Inc()
}
