package service_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/agentebl/multibanco-agent-go/internal/domain"
	"github.com/agentebl/multibanco-agent-go/internal/infra/cache"
	"github.com/agentebl/multibanco-agent-go/internal/infra/observability"
	"github.com/agentebl/multibanco-agent-go/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- Mocks ---

type mockProvider struct {
	mu      sync.Mutex
	calls   map[string]int
	payload map[string]map[string]any
	err     error
}

func newMockProvider() *mockProvider {
	return &mockProvider{calls: map[string]int{}, payload: map[string]map[string]any{}}
}

func (m *mockProvider) LookupDNI(_ context.Context, dni string) (map[string]any, error) {
	return m.lookup(dni)
}

func (m *mockProvider) LookupRUC(_ context.Context, ruc string) (map[string]any, error) {
	return m.lookup(ruc)
}

func (m *mockProvider) lookup(n string) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[n]++
	if m.err != nil {
		return nil, m.err
	}
	if p, ok := m.payload[n]; ok {
		return p, nil
	}
	return nil, &domain.ErrNotFound{Resource: "dni", ID: n}
}

func (m *mockProvider) callCount(n string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[n]
}

// --- Mock mode ---

func TestResolve_MockBook(t *testing.T) {
	r := service.NewMockIdentityResolver(nil, observability.NewMetrics(), zap.NewNop())

	id, err := r.Resolve(context.Background(), "72951012")
	require.NoError(t, err)
	assert.Equal(t, &domain.Identity{
		ID:              "72951012",
		FirstNames:      "MANUEL ALEXANDER",
		PaternalSurname: "BERMEJO",
		MaternalSurname: "LOPEZ",
		FullName:        "BERMEJO LOPEZ MANUEL ALEXANDER",
	}, id)

	id, err = r.Resolve(context.Background(), " 00000002 ")
	require.NoError(t, err)
	assert.Equal(t, "GOMEZ ROJAS MARIA", id.FullName)

	_, err = r.Resolve(context.Background(), "12345678")
	var nf *domain.ErrNotFound
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "No se encontró información para ese DNI.", nf.Detail)
}

func TestResolve_MalformedIsNotFoundWithoutLookup(t *testing.T) {
	p := newMockProvider()
	r := service.NewLiveIdentityResolver(p, observability.NewMetrics(), zap.NewNop())

	for _, bad := range []string{"", "1234567", "123456789", "abcdefgh"} {
		_, err := r.Resolve(context.Background(), bad)
		var nf *domain.ErrNotFound
		assert.ErrorAs(t, err, &nf, bad)
	}
	assert.Empty(t, p.calls)
}

func TestResolveBusiness_MockReturnsDemoCompany(t *testing.T) {
	r := service.NewMockIdentityResolver(nil, observability.NewMetrics(), zap.NewNop())

	biz, err := r.ResolveBusiness(context.Background(), "20123456789")
	require.NoError(t, err)
	assert.Equal(t, "20123456789", biz.ID)
	assert.Equal(t, "EMPRESA DEMO S.A.C.", biz.LegalName)
	assert.Equal(t, "HABIDO", biz.Condition)

	_, err = r.ResolveBusiness(context.Background(), "2012345678")
	var nf *domain.ErrNotFound
	assert.ErrorAs(t, err, &nf)
}

func TestLoadMockBook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
people:
  "11111111":
    nombres: ANA
    apellidoPaterno: QUISPE
    apellidoMaterno: MAMANI
businesses:
  "20999999999":
    razonSocial: BODEGA LA ESQUINA E.I.R.L.
    estado: ACTIVO
`), 0o600))

	book, err := service.LoadMockBook(path)
	require.NoError(t, err)
	r := service.NewMockIdentityResolver(book, observability.NewMetrics(), zap.NewNop())

	id, err := r.Resolve(context.Background(), "11111111")
	require.NoError(t, err)
	assert.Equal(t, "QUISPE MAMANI ANA", id.FullName)

	_, err = r.Resolve(context.Background(), "72951012")
	assert.Error(t, err, "a loaded book replaces the built-in one")

	biz, err := r.ResolveBusiness(context.Background(), "20999999999")
	require.NoError(t, err)
	assert.Equal(t, "BODEGA LA ESQUINA E.I.R.L.", biz.LegalName)
}

func TestLoadMockBook_RejectsBadIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.yaml")
	require.NoError(t, os.WriteFile(path, []byte("people:\n  \"123\": {nombres: X}\n"), 0o600))

	_, err := service.LoadMockBook(path)
	assert.Error(t, err)
}

// --- Live mode ---

func TestResolve_LiveNormalizesProviderPayload(t *testing.T) {
	p := newMockProvider()
	p.payload["72951012"] = map[string]any{"data": map[string]any{
		"first_name":       "MANUEL ALEXANDER",
		"first_last_name":  "BERMEJO",
		"second_last_name": "LOPEZ",
		"document_number":  "72951012",
	}}
	r := service.NewLiveIdentityResolver(p, observability.NewMetrics(), zap.NewNop())

	id, err := r.Resolve(context.Background(), "72951012")
	require.NoError(t, err)
	assert.Equal(t, "BERMEJO LOPEZ MANUEL ALEXANDER", id.FullName)
}

func TestResolve_EmptyPayloadIsNotFoundWithUpstreamMessage(t *testing.T) {
	p := newMockProvider()
	p.payload["72951012"] = map[string]any{"success": false, "message": "dni no válido"}
	r := service.NewLiveIdentityResolver(p, observability.NewMetrics(), zap.NewNop())

	_, err := r.Resolve(context.Background(), "72951012")

	var nf *domain.ErrNotFound
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "dni no válido", nf.Detail)
}

func TestResolve_ProviderFailurePropagates(t *testing.T) {
	p := newMockProvider()
	p.err = &domain.ErrProviderUnavailable{Provider: "decolecta", Detail: "status 500"}
	m := observability.NewMetrics()
	r := service.NewLiveIdentityResolver(p, m, zap.NewNop())

	_, err := r.Resolve(context.Background(), "72951012")

	var pu *domain.ErrProviderUnavailable
	require.ErrorAs(t, err, &pu)
	assert.Equal(t, int64(1), m.GetLookupSnapshot().ProviderFailures)
}

func TestResolve_NoProviderIsConfigurationError(t *testing.T) {
	r := service.NewLiveIdentityResolver(nil, observability.NewMetrics(), zap.NewNop())

	_, err := r.Resolve(context.Background(), "72951012")

	var cfgErr *domain.ErrConfiguration
	assert.ErrorAs(t, err, &cfgErr)
}

// countingCache records reads so tests can assert the cache was skipped.
type countingCache[T any] struct {
	gets int
}

func (c *countingCache[T]) Get(context.Context, string) (T, bool) {
	c.gets++
	var zero T
	return zero, false
}

func (c *countingCache[T]) Set(context.Context, string, T) {}

func (c *countingCache[T]) Delete(context.Context, string) {}

func TestResolve_NoProviderFailsBeforeCache(t *testing.T) {
	people := &countingCache[domain.Identity]{}
	businesses := &countingCache[domain.BusinessIdentity]{}
	r := service.NewLiveIdentityResolver(nil, observability.NewMetrics(), zap.NewNop(),
		service.WithIdentityCache(people, businesses))

	_, err := r.Resolve(context.Background(), "72951012")
	var cfgErr *domain.ErrConfiguration
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "DECOLECTA_TOKEN", cfgErr.Setting)

	_, err = r.ResolveBusiness(context.Background(), "20123456789")
	require.ErrorAs(t, err, &cfgErr)

	assert.Zero(t, people.gets)
	assert.Zero(t, businesses.gets)
}

func TestResolve_CacheAsideStoresOnlySuccesses(t *testing.T) {
	p := newMockProvider()
	p.payload["72951012"] = map[string]any{"nombres": "MANUEL", "apellidoPaterno": "BERMEJO"}
	people := cache.New[domain.Identity](time.Minute)
	defer people.Close()
	m := observability.NewMetrics()
	r := service.NewLiveIdentityResolver(p, m, zap.NewNop(), service.WithIdentityCache(people, nil))

	for i := 0; i < 3; i++ {
		id, err := r.Resolve(context.Background(), "72951012")
		require.NoError(t, err)
		assert.Equal(t, "BERMEJO MANUEL", id.FullName)
	}
	assert.Equal(t, 1, p.callCount("72951012"))

	for i := 0; i < 3; i++ {
		_, err := r.Resolve(context.Background(), "00000009")
		assert.Error(t, err)
	}
	assert.Equal(t, 3, p.callCount("00000009"), "not found must not be cached")
	_, cached := people.Get(context.Background(), "00000009")
	assert.False(t, cached)

	snap := m.GetLookupSnapshot()
	assert.Equal(t, int64(6), snap.TotalLookups)
	assert.InDelta(t, 2.0/6.0, snap.CacheHitRate, 1e-9)
}
