package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iho/memledger/internal/domain"
	"github.com/iho/memledger/internal/usecase"
)

var _ usecase.Observer = (*Metrics)(nil)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Account metrics
	AccountsOpened prometheus.Counter

	// Transaction metrics
	Transactions        *prometheus.CounterVec
	TransactionErrors   *prometheus.CounterVec
	TransactionDuration *prometheus.HistogramVec
	TransactionAmount   *prometheus.HistogramVec
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		AccountsOpened: factory.NewCounter(prometheus.CounterOpts{
			Name: "memledger_accounts_opened_total",
			Help: "Total number of accounts opened",
		}),

		Transactions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memledger_transactions_total",
				Help: "Total number of applied transactions by operation",
			},
			[]string{"operation"},
		),
		TransactionErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memledger_transaction_errors_total",
				Help: "Total number of rejected transactions by operation and error kind",
			},
			[]string{"operation", "error_kind"},
		),
		TransactionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "memledger_transaction_duration_seconds",
				Help:    "Duration of transaction processing, including rejected ones",
				Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05, .1},
			},
			[]string{"operation"},
		),
		TransactionAmount: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "memledger_transaction_amount",
				Help:    "Applied transaction amounts in minor units",
				Buckets: []float64{1, 10, 100, 1000, 10000, 100000, 1000000},
			},
			[]string{"operation"},
		),
	}
}

// AccountOpened implements usecase.Observer.
func (m *Metrics) AccountOpened() {
	m.AccountsOpened.Inc()
}

// TransactionSucceeded implements usecase.Observer.
func (m *Metrics) TransactionSucceeded(op domain.Operation, amount int64, elapsed time.Duration) {
	m.Transactions.WithLabelValues(string(op)).Inc()
	m.TransactionDuration.WithLabelValues(string(op)).Observe(elapsed.Seconds())

	if amount > 0 {
		m.TransactionAmount.WithLabelValues(string(op)).Observe(float64(amount))
	}
}

// TransactionFailed implements usecase.Observer.
func (m *Metrics) TransactionFailed(op domain.Operation, kind domain.ErrorKind, elapsed time.Duration) {
	m.TransactionErrors.WithLabelValues(string(op), string(kind)).Inc()
	m.TransactionDuration.WithLabelValues(string(op)).Observe(elapsed.Seconds())
}

// WriteTextfile writes everything gathered by g to path in the node exporter
// textfile format. The file is replaced atomically.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
