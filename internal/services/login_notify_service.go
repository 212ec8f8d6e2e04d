package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/BradenHooton/loginsentry/internal/auth"
	"github.com/BradenHooton/loginsentry/internal/cache"
	"github.com/BradenHooton/loginsentry/internal/config"
	"github.com/BradenHooton/loginsentry/internal/models"
	pkglogger "github.com/BradenHooton/loginsentry/pkg/logger"
)

// NotificationSink delivers notifications to users. Delivery guarantees
// belong to the sink; the engine fires and forgets.
type NotificationSink interface {
	Emit(ctx context.Context, notification models.Notification) error
}

// HistoryRecorder persists successful logins into deep history. Optional;
// a nil recorder means history only ever comes from an external writer.
type HistoryRecorder interface {
	RecordLogin(ctx context.Context, userID int64, realm, subnet string) error
}

// LoginEvent carries one login attempt, successful or not, as reported by
// the upstream authentication layer.
type LoginEvent struct {
	UserID     int64
	Username   string
	RemoteAddr string
	// Cookie is the history token presented by the client, if any.
	Cookie string
}

// FailureResult is the engine's decision for a failed login.
type FailureResult struct {
	KnownLocation bool
	Notification  *models.Notification
}

// SuccessResult is the engine's decision for a successful login. NewCookie
// must be persisted by the caller (typically as a cookie on the response).
type SuccessResult struct {
	NewCookie    string
	CookieMaxAge time.Duration
	Notification *models.Notification
}

// LoginNotifyConfig holds the engine's thresholds and feature flags.
type LoginNotifyConfig struct {
	KnownThreshold   int
	KnownTTL         time.Duration
	NewThreshold     int
	NewTTL           time.Duration
	MaxCookieRecords int
	CookieExpiry     time.Duration
	CacheTTL         time.Duration
	SuccessNotify    config.TriState
	LocalRealm       string
}

// LoginNotifyService orchestrates known-location resolution, failure
// counting, and notification gating for each login event.
type LoginNotifyService struct {
	resolver *KnownLocationResolver
	counter  *AttemptCounter
	store    cache.Store
	signer   *auth.CookieSigner
	sink     NotificationSink
	recorder HistoryRecorder
	config   LoginNotifyConfig
	logger   *slog.Logger
	audit    *pkglogger.AuditLogger
}

// NewLoginNotifyService creates a new LoginNotifyService. recorder may be
// nil when successful logins should not be written into deep history.
func NewLoginNotifyService(
	resolver *KnownLocationResolver,
	counter *AttemptCounter,
	store cache.Store,
	signer *auth.CookieSigner,
	sink NotificationSink,
	recorder HistoryRecorder,
	config LoginNotifyConfig,
	logger *slog.Logger,
	audit *pkglogger.AuditLogger,
) *LoginNotifyService {
	return &LoginNotifyService{
		resolver: resolver,
		counter:  counter,
		store:    store,
		signer:   signer,
		sink:     sink,
		recorder: recorder,
		config:   config,
		logger:   logger,
		audit:    audit,
	}
}

// HandleFailure processes a genuine credential-rejection failure: resolve
// the location, bump the matching counter, and notify when a threshold
// multiple is reached. Throttled or aborted attempts must be filtered out
// by the caller before this point.
func (s *LoginNotifyService) HandleFailure(ctx context.Context, event LoginEvent) *FailureResult {
	verdict := s.resolver.Resolve(ctx, event.UserID, event.Username, event.RemoteAddr, event.Cookie)

	class := models.FailureUnknownLocation
	notifyType := models.NotifyFailNew
	threshold, ttl := s.config.NewThreshold, s.config.NewTTL
	if verdict == models.VerdictKnown {
		class = models.FailureKnownLocation
		notifyType = models.NotifyFailKnown
		threshold, ttl = s.config.KnownThreshold, s.config.KnownTTL
	}

	result := &FailureResult{KnownLocation: verdict == models.VerdictKnown}

	count, notify := s.counter.RecordFailure(ctx, event.Username, class, threshold, ttl)
	s.logger.Info("login failure recorded",
		slog.Int64("user_id", event.UserID),
		slog.String("class", string(class)),
		slog.Int64("count", count))

	if notify {
		result.Notification = s.emit(ctx, event, notifyType, count)
	}
	return result
}

// HandleSuccess processes a successful login: clear the failure counters,
// send a success notice for unknown locations when enabled, and refresh
// the history token and subnet cache unconditionally.
func (s *LoginNotifyService) HandleSuccess(ctx context.Context, event LoginEvent) *SuccessResult {
	if err := s.counter.Clear(ctx, event.Username); err != nil {
		s.logger.Error("failed to clear attempt counters",
			slog.Int64("user_id", event.UserID),
			slog.Any("error", err))
	}

	result := &SuccessResult{CookieMaxAge: s.config.CookieExpiry}

	if s.config.SuccessNotify.Bool(false) {
		verdict := s.resolver.Resolve(ctx, event.UserID, event.Username, event.RemoteAddr, event.Cookie)
		if verdict == models.VerdictUnknown {
			result.Notification = s.emit(ctx, event, models.NotifySuccess, 0)
		}
	}

	_, result.NewCookie = s.signer.MergeCookie(event.Cookie, event.Username, s.config.MaxCookieRecords, time.Now())

	subnet, err := auth.Subnet(event.RemoteAddr)
	if err != nil {
		s.logger.Warn("skipping location refresh for unparsable address",
			slog.Int64("user_id", event.UserID),
			slog.Any("error", err))
		return result
	}

	if s.config.CacheTTL > 0 {
		if err := s.store.Set(ctx, storeKey(purposePrevSubnet, event.Username), subnet, s.config.CacheTTL); err != nil {
			s.logger.Error("failed to cache login subnet",
				slog.Int64("user_id", event.UserID),
				slog.Any("error", err))
		}
	}

	if s.recorder != nil {
		if err := s.recorder.RecordLogin(ctx, event.UserID, s.config.LocalRealm, subnet); err != nil {
			s.logger.Error("failed to record login history",
				slog.Int64("user_id", event.UserID),
				slog.Any("error", err))
		}
	}

	return result
}

// emit sends a notification through the sink. Delivery failures are
// logged, never propagated: a missed notification beats a failed login
// flow.
func (s *LoginNotifyService) emit(ctx context.Context, event LoginEvent, notifyType string, count int64) *models.Notification {
	notification := models.NewNotification(event.UserID, event.Username, notifyType, count)

	if err := s.sink.Emit(ctx, notification); err != nil {
		s.logger.Error("failed to emit notification",
			slog.String("type", notifyType),
			slog.Int64("user_id", event.UserID),
			slog.Any("error", err))
	}

	s.audit.LogNotification(notification)
	return &notification
}
