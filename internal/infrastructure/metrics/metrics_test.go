package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/memledger/internal/domain"
)

func TestNewRegistersMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()

	m := New(registry)
	m.AccountOpened()

	metricFamilies, err := registry.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, metricFamilies)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.AccountsOpened))
}

func TestNewTwiceOnSameRegistryPanics(t *testing.T) {
	registry := prometheus.NewRegistry()
	New(registry)

	assert.Panics(t, func() { New(registry) })
}

func TestObserver(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.TransactionSucceeded(domain.OperationDeposit, 100, time.Millisecond)
	m.TransactionSucceeded(domain.OperationDeposit, 50, time.Millisecond)
	m.TransactionSucceeded(domain.OperationClose, 0, time.Millisecond)
	m.TransactionFailed(domain.OperationWithdraw, domain.KindInsufficientFunds, time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.Transactions.WithLabelValues("deposit")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Transactions.WithLabelValues("close")))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		m.TransactionErrors.WithLabelValues("withdraw", "InsufficientFunds"),
	))

	// Close carries no amount, so only deposit observes the amount histogram.
	assert.Equal(t, 1, testutil.CollectAndCount(m.TransactionAmount))
	assert.Equal(t, 3, testutil.CollectAndCount(m.TransactionDuration))

	expected := `
# HELP memledger_transactions_total Total number of applied transactions by operation
# TYPE memledger_transactions_total counter
memledger_transactions_total{operation="close"} 1
memledger_transactions_total{operation="deposit"} 2
`
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), "memledger_transactions_total"))
}

func TestWriteTextfile(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)
	m.AccountOpened()

	path := filepath.Join(t.TempDir(), "memledger.prom")
	require.NoError(t, WriteTextfile(path, registry))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "memledger_accounts_opened_total 1")
}
