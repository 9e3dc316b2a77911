package observability_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/agentebl/multibanco-agent-go/internal/domain"
	"github.com/agentebl/multibanco-agent-go/internal/infra/observability"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLookupSnapshot(t *testing.T) {
	m := observability.NewMetrics()

	m.RecordLookup("dni", observability.OutcomeResolved, 10*time.Millisecond)
	m.RecordLookup("dni", observability.OutcomeResolved, 10*time.Millisecond)
	m.RecordLookup("ruc", observability.OutcomeResolved, 10*time.Millisecond)
	m.RecordLookup("dni", observability.OutcomeNotFound, 10*time.Millisecond)
	m.RecordLookup("dni", observability.OutcomeProviderFailure, 10*time.Millisecond)
	m.IncrCacheHit("identity")
	m.IncrCacheMiss("identity")
	m.IncrCacheMiss("identity")
	m.IncrCacheMiss("identity")
	m.RecordReceipt(domain.BankYape, domain.MovementDeposit, decimal.NewFromInt(2))
	m.RecordReceipt(domain.BankBCP, domain.MovementPayment, decimal.NewFromInt(3))

	s := m.GetLookupSnapshot()

	assert.Equal(t, int64(5), s.TotalLookups)
	assert.Equal(t, int64(3), s.Resolved)
	assert.Equal(t, int64(1), s.NotFound)
	assert.Equal(t, int64(1), s.ProviderFailures)
	assert.InDelta(t, 0.2, s.FailureRate, 1e-9)
	assert.InDelta(t, 0.25, s.CacheHitRate, 1e-9)
	assert.Equal(t, int64(2), s.ReceiptsCreated)
	assert.InDelta(t, 5.0, s.FeesCollected, 1e-9)
	assert.Equal(t, "all_time", s.Period)
}

func TestLookupSnapshot_EmptyRegistry(t *testing.T) {
	s := observability.NewMetrics().GetLookupSnapshot()

	assert.Zero(t, s.TotalLookups)
	assert.Zero(t, s.FailureRate)
	assert.Zero(t, s.CacheHitRate)
}

func TestNewMetrics_IndependentRegistries(t *testing.T) {
	a := observability.NewMetrics()
	b := observability.NewMetrics()

	a.IncrExternalError("postgres")

	assert.Equal(t, 1, seriesCount(t, a, "agent_external_errors_total"))
	assert.Equal(t, 0, seriesCount(t, b, "agent_external_errors_total"))
}

func seriesCount(t *testing.T, m *observability.Metrics, name string) int {
	t.Helper()
	families, err := m.Registry.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name {
			return len(f.GetMetric())
		}
	}
	return 0
}

func TestZapLoggerMiddleware_LevelsByStatus(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	mw := observability.ZapLoggerMiddleware(logger)
	for path, status := range map[string]int{"/ok": 200, "/bad": 400, "/boom": 500, "/healthz": 200} {
		status := status
		h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(status) }))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	levels := map[string]zapcore.Level{}
	for _, e := range logs.All() {
		levels[e.ContextMap()["path"].(string)] = e.Level
	}
	assert.Equal(t, zapcore.InfoLevel, levels["/ok"])
	assert.Equal(t, zapcore.WarnLevel, levels["/bad"])
	assert.Equal(t, zapcore.ErrorLevel, levels["/boom"])
	assert.Equal(t, zapcore.DebugLevel, levels["/healthz"])
}

func TestInitTracer_NoEndpointIsNoop(t *testing.T) {
	shutdown, err := observability.InitTracer(context.Background(), "test", "")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
