package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/BradenHooton/loginsentry/internal/models"
	"github.com/BradenHooton/loginsentry/internal/services"
	pkghttp "github.com/BradenHooton/loginsentry/pkg/http"
	pkglogger "github.com/BradenHooton/loginsentry/pkg/logger"
)

// LoginNotifyServiceInterface defines the interface for the notify engine
type LoginNotifyServiceInterface interface {
	HandleFailure(ctx context.Context, event services.LoginEvent) *services.FailureResult
	HandleSuccess(ctx context.Context, event services.LoginEvent) *services.SuccessResult
}

// Login outcomes and failure reasons accepted on the ingest API. Only a
// genuine credential rejection feeds the counters; throttled and aborted
// attempts are acknowledged without processing so upstream lockouts never
// inflate the counts.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"

	ReasonRejected  = "rejected"
	ReasonThrottled = "throttled"
	ReasonAborted   = "aborted"
)

// LoginEventsHandler handles login event ingestion from upstream
// authentication services
type LoginEventsHandler struct {
	service  LoginNotifyServiceInterface
	audit    *pkglogger.AuditLogger
	ipConfig *pkghttp.IPConfig
}

// NewLoginEventsHandler creates a new LoginEventsHandler
func NewLoginEventsHandler(service LoginNotifyServiceInterface, audit *pkglogger.AuditLogger, ipConfig *pkghttp.IPConfig) *LoginEventsHandler {
	return &LoginEventsHandler{
		service:  service,
		audit:    audit,
		ipConfig: ipConfig,
	}
}

// LoginEventRequest represents one reported login attempt
type LoginEventRequest struct {
	UserID       int64  `json:"user_id" validate:"required,gt=0"`
	Username     string `json:"username" validate:"required,max=255"`
	RemoteAddr   string `json:"remote_addr" validate:"required,ip"`
	Outcome      string `json:"outcome" validate:"required,oneof=success failure"`
	Reason       string `json:"reason" validate:"omitempty,oneof=rejected throttled aborted"`
	HistoryToken string `json:"history_token" validate:"omitempty,max=4096"`
}

// LoginEventResponse represents the engine's decision for one event
type LoginEventResponse struct {
	Processed     bool                 `json:"processed"`
	KnownLocation *bool                `json:"known_location,omitempty"`
	HistoryToken  string               `json:"history_token,omitempty"`
	TokenMaxAge   int64                `json:"token_max_age_seconds,omitempty"`
	Notification  *models.Notification `json:"notification,omitempty"`
}

// HandleLoginEvent ingests a single login event
// @Summary Report a login attempt
// @Accept json
// @Param request body LoginEventRequest true "Login event"
// @Produce json
// @Success 200 {object} LoginEventResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /v1/login-events [post]
func (h *LoginEventsHandler) HandleLoginEvent(w http.ResponseWriter, r *http.Request) {
	var req LoginEventRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Username = pkglogger.SanitizeUsername(req.Username)

	reporterIP := pkghttp.ExtractClientIP(r, h.ipConfig)
	h.audit.LogLoginEvent(pkglogger.AuditEvent{
		EventType: req.Outcome,
		UserID:    req.UserID,
		IPAddress: reporterIP,
		Success:   req.Outcome == OutcomeSuccess,
		Metadata:  map[string]string{"reason": req.Reason},
	})

	event := services.LoginEvent{
		UserID:     req.UserID,
		Username:   req.Username,
		RemoteAddr: req.RemoteAddr,
		Cookie:     req.HistoryToken,
	}

	switch {
	case req.Outcome == OutcomeSuccess:
		result := h.service.HandleSuccess(r.Context(), event)
		writeJSON(w, http.StatusOK, LoginEventResponse{
			Processed:    true,
			HistoryToken: result.NewCookie,
			TokenMaxAge:  int64(result.CookieMaxAge.Seconds()),
			Notification: result.Notification,
		})

	case req.Reason == ReasonThrottled || req.Reason == ReasonAborted:
		// Acknowledged but not counted.
		writeJSON(w, http.StatusOK, LoginEventResponse{Processed: false})

	default:
		result := h.service.HandleFailure(r.Context(), event)
		writeJSON(w, http.StatusOK, LoginEventResponse{
			Processed:     true,
			KnownLocation: &result.KnownLocation,
			Notification:  result.Notification,
		})
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}
