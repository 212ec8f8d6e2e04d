package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/BradenHooton/loginsentry/internal/auth"
	"github.com/BradenHooton/loginsentry/internal/cache"
	"github.com/BradenHooton/loginsentry/internal/config"
	"github.com/BradenHooton/loginsentry/internal/handlers"
	middlewareCustom "github.com/BradenHooton/loginsentry/internal/middleware"
	"github.com/BradenHooton/loginsentry/internal/models"
	"github.com/BradenHooton/loginsentry/internal/routes"
	"github.com/BradenHooton/loginsentry/internal/services"
	pkglogger "github.com/BradenHooton/loginsentry/pkg/logger"
)

const testSigningSecret = "integration-test-secret-32-chars"

// CapturedSink records emitted notifications for test assertions
type CapturedSink struct {
	mu            sync.Mutex
	Notifications []models.Notification
}

// Emit records the notification
func (s *CapturedSink) Emit(ctx context.Context, n models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Notifications = append(s.Notifications, n)
	return nil
}

// Last returns the most recent notification, or nil
func (s *CapturedSink) Last() *models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Notifications) == 0 {
		return nil
	}
	return &s.Notifications[len(s.Notifications)-1]
}

// Count returns the number of captured notifications
func (s *CapturedSink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Notifications)
}

// TestServer wraps httptest.Server with the full ingest stack: real
// database-backed history, in-memory store, captured notifications
type TestServer struct {
	Server       *httptest.Server
	Sink         *CapturedSink
	ServiceToken string

	logger *slog.Logger
}

// NewTestServer initializes a complete HTTP server over the test database
func NewTestServer(db *TestDB) (*TestServer, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	store := cache.NewMemoryStore()
	signer, err := auth.NewCookieSigner(testSigningSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie signer: %w", err)
	}

	historyRepo := db.NewHistoryRepository()

	resolver := services.NewKnownLocationResolver(store, historyRepo, signer, services.ResolverConfig{
		HistoryEnabled: true,
		NoInfoIsKnown:  true,
		LocalRealm:     "local",
		MaxRealms:      10,
		RealmTimeout:   2 * time.Second,
	}, logger)
	counter := services.NewAttemptCounter(store, logger)

	sink := &CapturedSink{}
	auditLogger := pkglogger.NewAuditLogger(logger)
	notifyService := services.NewLoginNotifyService(
		resolver, counter, store, signer, sink, historyRepo,
		services.LoginNotifyConfig{
			KnownThreshold:   10,
			KnownTTL:         7 * 24 * time.Hour,
			NewThreshold:     3,
			NewTTL:           14 * 24 * time.Hour,
			MaxCookieRecords: 6,
			CookieExpiry:     180 * 24 * time.Hour,
			CacheTTL:         60 * 24 * time.Hour,
			SuccessNotify:    config.Enabled,
			LocalRealm:       "local",
		},
		logger, auditLogger,
	)

	tokenManager := auth.NewServiceTokenManager(testSigningSecret, time.Hour)
	eventsHandler := handlers.NewLoginEventsHandler(notifyService, auditLogger, nil)

	router := chi.NewRouter()
	router.Use(chiMiddleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: "test"}))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(chiMiddleware.Recoverer)

	routes.RegisterRoutes(router, eventsHandler, tokenManager)

	token, err := tokenManager.GenerateToken("integration-tests")
	if err != nil {
		return nil, fmt.Errorf("failed to generate service token: %w", err)
	}

	return &TestServer{
		Server:       httptest.NewServer(router),
		Sink:         sink,
		ServiceToken: token,
		logger:       logger,
	}, nil
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	ts.Server.Close()
}

// PostLoginEvent reports one login event with the test service token and
// decodes the response
func (ts *TestServer) PostLoginEvent(t interface{ Fatalf(string, ...any) }, body map[string]any) (*http.Response, *handlers.LoginEventResponse) {
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal event: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, ts.Server.URL+"/v1/login-events", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+ts.ServiceToken)

	resp, err := ts.Server.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var decoded handlers.LoginEventResponse
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
	}
	return resp, &decoded
}
