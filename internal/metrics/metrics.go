// Package metrics - Prometheus метрики сервиса расчётов.
//
// Экспортируются через /metrics (promhttp).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "settlement"

// ============ Предложения ============

// OfferTransitions - принятые переходы предложений
var OfferTransitions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "offers",
		Name:      "transitions_total",
		Help:      "Offer state transitions by resulting status",
	},
	[]string{"status", "source"}, // source: external, internal
)

// OfferRejections - отклонённые изменения предложений
var OfferRejections = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "offers",
		Name:      "rejections_total",
		Help:      "Rejected offer mutations",
	},
	[]string{"reason"}, // terminal, validation, version_conflict, quantity
)

// NotificationsSent - отправленные уведомления
var NotificationsSent = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notifications",
		Name:      "sent_total",
		Help:      "Notifications delivered by action",
	},
	[]string{"action"},
)

// ============ Реконсиляция ============

// ReconciledShares - изменения sharesIssued / sharesAuthorized
var ReconciledShares = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "issuances",
		Name:      "reconciled_shares_total",
		Help:      "Absolute share delta applied to issuances",
	},
	[]string{"field"}, // issued, authorized
)

// ============ Выплаты ============

// PayoutOutcomes - результаты обработки записей ICO выплат
var PayoutOutcomes = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "payouts",
		Name:      "outcomes_total",
		Help:      "Payout disbursement outcomes",
	},
	[]string{"outcome"}, // paid, manual, contended, not_found
)

// PayoutAmount - сумма успешных выплат в базовых единицах
var PayoutAmount = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "payouts",
		Name:      "paid_base_units_total",
		Help:      "Total amount paid out in base units",
	},
)

// PayoutsInFlight - выплаты, выполняемые в фоне
var PayoutsInFlight = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "payouts",
		Name:      "in_flight",
		Help:      "Asynchronous payouts currently running",
	},
)

// ============ Ledger RPC ============

// LedgerLatency - время RPC вызова узла
var LedgerLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "rpc_latency_ms",
		Help:      "Ledger JSON-RPC latency in milliseconds",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	},
	[]string{"method"},
)

// LedgerErrors - ошибки RPC вызовов
var LedgerErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "rpc_errors_total",
		Help:      "Ledger JSON-RPC errors",
	},
	[]string{"method"},
)

// ============ HTTP / WebSocket ============

// HTTPRequests - обработанные HTTP запросы
var HTTPRequests = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method and status code",
	},
	[]string{"method", "code"},
)

// HTTPLatency - длительность HTTP запросов
var HTTPLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_latency_ms",
		Help:      "HTTP request latency in milliseconds",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	},
	[]string{"method"},
)

// WebSocketClients - подключенные WebSocket клиенты
var WebSocketClients = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "websocket",
		Name:      "clients",
		Help:      "Connected WebSocket clients",
	},
)

// ============ Вспомогательные функции ============

// RecordTransition учитывает принятый переход предложения
func RecordTransition(status string, external bool) {
	source := "internal"
	if external {
		source = "external"
	}
	OfferTransitions.WithLabelValues(status, source).Inc()
}

// RecordRejection учитывает отклонённое изменение
func RecordRejection(reason string) {
	OfferRejections.WithLabelValues(reason).Inc()
}

// RecordReconciliation учитывает изменение выпуска
func RecordReconciliation(field string, delta int64) {
	if delta < 0 {
		delta = -delta
	}
	ReconciledShares.WithLabelValues(field).Add(float64(delta))
}

// RecordPayout учитывает результат выплаты
func RecordPayout(outcome string, amount int64) {
	PayoutOutcomes.WithLabelValues(outcome).Inc()
	if amount > 0 {
		PayoutAmount.Add(float64(amount))
	}
}

// RecordLedgerCall учитывает RPC вызов
func RecordLedgerCall(method string, started time.Time, err error) {
	LedgerLatency.WithLabelValues(method).Observe(float64(time.Since(started).Microseconds()) / 1000)
	if err != nil {
		LedgerErrors.WithLabelValues(method).Inc()
	}
}

// RecordHTTPRequest учитывает HTTP запрос
func RecordHTTPRequest(method, code string, latency time.Duration) {
	HTTPRequests.WithLabelValues(method, code).Inc()
	HTTPLatency.WithLabelValues(method).Observe(float64(latency.Microseconds()) / 1000)
}
