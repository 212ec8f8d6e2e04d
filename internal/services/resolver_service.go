package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/BradenHooton/loginsentry/internal/auth"
	"github.com/BradenHooton/loginsentry/internal/cache"
	"github.com/BradenHooton/loginsentry/internal/models"
)

// Realm names an account domain holding its own login history, with the
// user's activity level there. Higher activity realms are checked first.
type Realm struct {
	Name     string
	Activity int64
}

// HistoryProvider defines the interface for deep login-history lookups,
// possibly spanning multiple realms. Implementations return
// models.ErrRealmUnavailable when a realm has no history data source;
// the resolver skips such realms rather than failing the resolution.
type HistoryProvider interface {
	HasAnyRecords(ctx context.Context, userID int64, realm string) (bool, error)
	HasMatchingNetwork(ctx context.Context, userID int64, realm, subnet string) (bool, error)
	TopRealmsByActivity(ctx context.Context, userID int64, limit int) ([]Realm, error)
}

// ResolverConfig holds configuration for known-location resolution
type ResolverConfig struct {
	HistoryEnabled bool
	// NoInfoIsKnown keeps the historical polarity: when every evidence
	// source reports no information, treat the location as known rather
	// than alarming users who simply have no data yet.
	NoInfoIsKnown bool
	LocalRealm    string
	MaxRealms     int
	RealmTimeout  time.Duration
}

// KnownLocationResolver decides whether a login originates from a network
// location previously associated with the user. Resolution is read-only:
// it never writes to the cache or history.
type KnownLocationResolver struct {
	store   cache.Store
	history HistoryProvider
	signer  *auth.CookieSigner
	config  ResolverConfig
	logger  *slog.Logger
}

// NewKnownLocationResolver creates a new KnownLocationResolver. history
// may be nil when no deep-history source exists.
func NewKnownLocationResolver(store cache.Store, history HistoryProvider, signer *auth.CookieSigner, config ResolverConfig, logger *slog.Logger) *KnownLocationResolver {
	return &KnownLocationResolver{
		store:   store,
		history: history,
		signer:  signer,
		config:  config,
		logger:  logger,
	}
}

// Resolve fuses the history token, the subnet cache, and the deep-history
// provider into a single verdict. The result is always VerdictKnown or
// VerdictUnknown; NoInformation exists only per source.
func (r *KnownLocationResolver) Resolve(ctx context.Context, userID int64, username, remoteAddr, cookie string) models.Verdict {
	now := time.Now()

	cookieResult := r.checkCookie(username, cookie, now)
	if cookieResult == models.VerdictKnown {
		return models.VerdictKnown
	}

	// An unparsable address cannot match anything; the address-based
	// checks degrade to Unknown rather than failing the event.
	cacheResult := models.VerdictUnknown
	historyResult := models.VerdictUnknown

	subnet, err := auth.Subnet(remoteAddr)
	if err != nil {
		r.logger.Warn("failed to derive subnet for resolution",
			slog.Int64("user_id", userID),
			slog.Any("error", err))
	} else {
		cacheResult = r.checkCache(ctx, username, subnet)
		if cacheResult == models.VerdictKnown {
			return models.VerdictKnown
		}

		historyResult = r.checkHistory(ctx, userID, subnet)
		if historyResult == models.VerdictKnown {
			return models.VerdictKnown
		}
	}

	// With no data in any source we cannot tell known from unknown.
	// Careful: an absent cookie is under the attacker's control, so this
	// branch must be unreachable when the history check is disabled
	// (a disabled check reports Unknown, not NoInformation).
	if cookieResult == models.VerdictNoInformation &&
		cacheResult == models.VerdictNoInformation &&
		historyResult == models.VerdictNoInformation &&
		r.config.NoInfoIsKnown {
		r.logger.Info("assuming known location: no information available",
			slog.Int64("user_id", userID))
		return models.VerdictKnown
	}

	return models.VerdictUnknown
}

// checkCookie inspects the history token presented by the caller.
func (r *KnownLocationResolver) checkCookie(username, cookie string, now time.Time) models.Verdict {
	if cookie == "" {
		return models.VerdictNoInformation
	}
	if r.signer.CookieContains(username, cookie, now) {
		return models.VerdictKnown
	}
	return models.VerdictUnknown
}

// checkCache compares the current subnet with the one cached at last
// successful login.
func (r *KnownLocationResolver) checkCache(ctx context.Context, username, subnet string) models.Verdict {
	cached, ok, err := r.store.Get(ctx, storeKey(purposePrevSubnet, username))
	if err != nil {
		r.logger.Error("subnet cache lookup failed", slog.Any("error", err))
		return models.VerdictNoInformation
	}
	if !ok {
		return models.VerdictNoInformation
	}
	if cached == subnet {
		return models.VerdictKnown
	}
	return models.VerdictUnknown
}

// checkHistory consults the deep-history provider: the local realm first,
// then up to MaxRealms foreign realms by descending activity, stopping at
// the first match. Unavailable realms are skipped; transient errors count
// as no information for that realm.
func (r *KnownLocationResolver) checkHistory(ctx context.Context, userID int64, subnet string) models.Verdict {
	if !r.config.HistoryEnabled || r.history == nil {
		return models.VerdictUnknown
	}

	if r.realmHasMatch(ctx, userID, r.config.LocalRealm, subnet) {
		return models.VerdictKnown
	}
	haveAnyInfo := r.realmHasAny(ctx, userID, r.config.LocalRealm)

	realms, err := r.history.TopRealmsByActivity(ctx, userID, r.config.MaxRealms)
	if err != nil {
		r.logger.Error("failed to list realms by activity",
			slog.Int64("user_id", userID),
			slog.Any("error", err))
		realms = nil
	}

	checked := 0
	for _, realm := range realms {
		if realm.Name == r.config.LocalRealm || realm.Activity < 1 {
			continue
		}
		if checked >= r.config.MaxRealms {
			break
		}
		checked++

		if r.realmHasMatch(ctx, userID, realm.Name, subnet) {
			return models.VerdictKnown
		}
		if !haveAnyInfo {
			haveAnyInfo = r.realmHasAny(ctx, userID, realm.Name)
		}
	}

	if !haveAnyInfo {
		return models.VerdictNoInformation
	}
	return models.VerdictUnknown
}

func (r *KnownLocationResolver) realmHasMatch(ctx context.Context, userID int64, realm, subnet string) bool {
	realmCtx, cancel := r.realmContext(ctx)
	defer cancel()

	match, err := r.history.HasMatchingNetwork(realmCtx, userID, realm, subnet)
	if err != nil {
		r.logRealmError("history network lookup failed", userID, realm, err)
		return false
	}
	return match
}

func (r *KnownLocationResolver) realmHasAny(ctx context.Context, userID int64, realm string) bool {
	realmCtx, cancel := r.realmContext(ctx)
	defer cancel()

	any, err := r.history.HasAnyRecords(realmCtx, userID, realm)
	if err != nil {
		r.logRealmError("history record lookup failed", userID, realm, err)
		return false
	}
	return any
}

func (r *KnownLocationResolver) realmContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.config.RealmTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.config.RealmTimeout)
}

func (r *KnownLocationResolver) logRealmError(msg string, userID int64, realm string, err error) {
	level := slog.LevelError
	if errors.Is(err, models.ErrRealmUnavailable) {
		level = slog.LevelWarn
	}
	r.logger.Log(context.Background(), level, msg,
		slog.Int64("user_id", userID),
		slog.String("realm", realm),
		slog.Any("error", err))
}
