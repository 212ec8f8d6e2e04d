package services_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/BradenHooton/loginsentry/internal/auth"
	"github.com/BradenHooton/loginsentry/internal/cache"
	"github.com/BradenHooton/loginsentry/internal/models"
	"github.com/BradenHooton/loginsentry/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resolverSecret = "resolver-test-secret-32-chars-ok"

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

// MockHistoryProvider implements services.HistoryProvider for testing
type MockHistoryProvider struct {
	records     map[string]bool // realm -> user has any records there
	networks    map[string]bool // realm + "|" + subnet -> match
	realms      []services.Realm
	unavailable map[string]bool // realm -> ErrRealmUnavailable
	failing     bool            // all lookups return a transient error
}

func NewMockHistoryProvider() *MockHistoryProvider {
	return &MockHistoryProvider{
		records:     make(map[string]bool),
		networks:    make(map[string]bool),
		unavailable: make(map[string]bool),
	}
}

func (m *MockHistoryProvider) AddLogin(realm, subnet string) {
	m.records[realm] = true
	m.networks[realm+"|"+subnet] = true
}

func (m *MockHistoryProvider) HasAnyRecords(ctx context.Context, userID int64, realm string) (bool, error) {
	if m.failing {
		return false, models.ErrHistoryUnavailable
	}
	if m.unavailable[realm] {
		return false, models.ErrRealmUnavailable
	}
	return m.records[realm], nil
}

func (m *MockHistoryProvider) HasMatchingNetwork(ctx context.Context, userID int64, realm, subnet string) (bool, error) {
	if m.failing {
		return false, models.ErrHistoryUnavailable
	}
	if m.unavailable[realm] {
		return false, models.ErrRealmUnavailable
	}
	return m.networks[realm+"|"+subnet], nil
}

func (m *MockHistoryProvider) TopRealmsByActivity(ctx context.Context, userID int64, limit int) ([]services.Realm, error) {
	if m.failing {
		return nil, models.ErrHistoryUnavailable
	}
	return m.realms, nil
}

func newResolver(t *testing.T, store cache.Store, history services.HistoryProvider, enabled bool) (*services.KnownLocationResolver, *auth.CookieSigner) {
	t.Helper()
	signer, err := auth.NewCookieSigner(resolverSecret)
	require.NoError(t, err)

	cfg := services.ResolverConfig{
		HistoryEnabled: enabled,
		NoInfoIsKnown:  true,
		LocalRealm:     "local",
		MaxRealms:      10,
		RealmTimeout:   time.Second,
	}
	return services.NewKnownLocationResolver(store, history, signer, cfg, testLogger()), signer
}

func TestResolve_NoDataAnywhere_DefaultsToKnown(t *testing.T) {
	resolver, _ := newResolver(t, cache.NewMemoryStore(), NewMockHistoryProvider(), true)

	verdict := resolver.Resolve(context.Background(), 1, "alice", "203.0.113.5", "")
	assert.Equal(t, models.VerdictKnown, verdict)
}

func TestResolve_NoDataAnywhere_PolarityConfigurable(t *testing.T) {
	signer, err := auth.NewCookieSigner(resolverSecret)
	require.NoError(t, err)
	cfg := services.ResolverConfig{
		HistoryEnabled: true,
		NoInfoIsKnown:  false,
		LocalRealm:     "local",
		MaxRealms:      10,
		RealmTimeout:   time.Second,
	}
	resolver := services.NewKnownLocationResolver(cache.NewMemoryStore(), NewMockHistoryProvider(), signer, cfg, testLogger())

	verdict := resolver.Resolve(context.Background(), 1, "alice", "203.0.113.5", "")
	assert.Equal(t, models.VerdictUnknown, verdict)
}

func TestResolve_HistoryDisabled_NoDataIsUnknown(t *testing.T) {
	// With the history check off, an absent cookie must not be enough to
	// reach the conservative default: cookie absence is attacker
	// controlled.
	resolver, _ := newResolver(t, cache.NewMemoryStore(), nil, false)

	verdict := resolver.Resolve(context.Background(), 1, "alice", "203.0.113.5", "")
	assert.Equal(t, models.VerdictUnknown, verdict)
}

func TestResolve_CookieMatch_Known(t *testing.T) {
	resolver, signer := newResolver(t, cache.NewMemoryStore(), nil, false)
	record := signer.GenerateRecord("alice", time.Now())

	verdict := resolver.Resolve(context.Background(), 1, "alice", "203.0.113.5", record)
	assert.Equal(t, models.VerdictKnown, verdict)
}

func TestResolve_CookieForOtherUser_Unknown(t *testing.T) {
	resolver, signer := newResolver(t, cache.NewMemoryStore(), NewMockHistoryProvider(), true)
	record := signer.GenerateRecord("bob", time.Now())

	verdict := resolver.Resolve(context.Background(), 1, "alice", "203.0.113.5", record)
	assert.Equal(t, models.VerdictUnknown, verdict)
}

func TestResolve_CacheMatch(t *testing.T) {
	store := cache.NewMemoryStore()
	resolver, _ := newResolver(t, store, NewMockHistoryProvider(), true)
	ctx := context.Background()

	// Prime the cache the way a successful login would.
	engineStore(t, store, "alice", "203.0.113.")

	verdict := resolver.Resolve(ctx, 1, "alice", "203.0.113.9", "")
	assert.Equal(t, models.VerdictKnown, verdict)

	verdict = resolver.Resolve(ctx, 1, "alice", "198.51.100.7", "")
	assert.Equal(t, models.VerdictUnknown, verdict)
}

func TestResolve_LocalRealmHistoryMatch(t *testing.T) {
	history := NewMockHistoryProvider()
	history.AddLogin("local", "203.0.113.")
	resolver, _ := newResolver(t, cache.NewMemoryStore(), history, true)

	verdict := resolver.Resolve(context.Background(), 1, "alice", "203.0.113.77", "")
	assert.Equal(t, models.VerdictKnown, verdict)
}

func TestResolve_CrossRealmHistoryMatch(t *testing.T) {
	history := NewMockHistoryProvider()
	history.AddLogin("dewiki", "203.0.113.")
	history.realms = []services.Realm{
		{Name: "frwiki", Activity: 500},
		{Name: "dewiki", Activity: 100},
	}
	resolver, _ := newResolver(t, cache.NewMemoryStore(), history, true)

	verdict := resolver.Resolve(context.Background(), 1, "alice", "203.0.113.77", "")
	assert.Equal(t, models.VerdictKnown, verdict)
}

func TestResolve_UnavailableRealmSkipped(t *testing.T) {
	history := NewMockHistoryProvider()
	history.AddLogin("dewiki", "203.0.113.")
	history.unavailable["frwiki"] = true
	history.realms = []services.Realm{
		{Name: "frwiki", Activity: 500},
		{Name: "dewiki", Activity: 100},
	}
	resolver, _ := newResolver(t, cache.NewMemoryStore(), history, true)

	verdict := resolver.Resolve(context.Background(), 1, "alice", "203.0.113.77", "")
	assert.Equal(t, models.VerdictKnown, verdict)
}

func TestResolve_HistoryMismatch_Unknown(t *testing.T) {
	history := NewMockHistoryProvider()
	history.AddLogin("local", "198.51.100.")
	resolver, _ := newResolver(t, cache.NewMemoryStore(), history, true)

	verdict := resolver.Resolve(context.Background(), 1, "alice", "203.0.113.5", "")
	assert.Equal(t, models.VerdictUnknown, verdict)
}

func TestResolve_TransientHistoryFailure_TreatedAsNoInformation(t *testing.T) {
	history := NewMockHistoryProvider()
	history.failing = true
	resolver, _ := newResolver(t, cache.NewMemoryStore(), history, true)

	// All sources degrade to no information, so the conservative default
	// applies instead of an error surfacing.
	verdict := resolver.Resolve(context.Background(), 1, "alice", "203.0.113.5", "")
	assert.Equal(t, models.VerdictKnown, verdict)
}

func TestResolve_RealmFanOutCapped(t *testing.T) {
	history := NewMockHistoryProvider()
	history.AddLogin("wiki-far", "203.0.113.")
	for i := 0; i < 15; i++ {
		history.realms = append(history.realms, services.Realm{
			Name:     "wiki-" + string(rune('a'+i)),
			Activity: int64(1000 - i),
		})
	}
	// The matching realm sorts below the fan-out cap.
	history.realms = append(history.realms, services.Realm{Name: "wiki-far", Activity: 1})

	signer, err := auth.NewCookieSigner(resolverSecret)
	require.NoError(t, err)
	cfg := services.ResolverConfig{
		HistoryEnabled: true,
		NoInfoIsKnown:  false,
		LocalRealm:     "local",
		MaxRealms:      10,
		RealmTimeout:   time.Second,
	}
	resolver := services.NewKnownLocationResolver(cache.NewMemoryStore(), history, signer, cfg, testLogger())

	verdict := resolver.Resolve(context.Background(), 1, "alice", "203.0.113.5", "")
	assert.Equal(t, models.VerdictUnknown, verdict)
}

// engineStore primes the previous-subnet cache under the same key the
// notify engine writes on successful login.
func engineStore(t *testing.T, store cache.Store, username, subnet string) {
	t.Helper()
	key := "loginsentry:prevSubnet:" + auth.HashUserKey(username)
	require.NoError(t, store.Set(context.Background(), key, subnet, time.Hour))
}

func TestResolve_InvalidAddress_FallsBackToUnknown(t *testing.T) {
	resolver, _ := newResolver(t, cache.NewMemoryStore(), NewMockHistoryProvider(), true)

	verdict := resolver.Resolve(context.Background(), 1, "alice", "not-an-ip", "")
	assert.Equal(t, models.VerdictUnknown, verdict)
}
