package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/frahmantamala/thesis-repository/internal"
	"github.com/frahmantamala/thesis-repository/internal/core/password"
	"github.com/frahmantamala/thesis-repository/pkg/logger"
)

// PasswordStatusReporter computes the expiry side channel for authenticated responses.
type PasswordStatusReporter interface {
	ExpiryStatus(lastChange, now time.Time) password.Status
}

// BaseHandler provides common functionality for HTTP handlers
type BaseHandler struct {
	Logger         *slog.Logger
	PasswordStatus PasswordStatusReporter
}

// NewBaseHandler creates a base handler with logger
func NewBaseHandler(lg *slog.Logger) *BaseHandler {
	if lg == nil {
		lg = logger.LoggerWrapper()
		if lg == nil {
			lg = slog.Default()
		}
	}
	return &BaseHandler{Logger: lg}
}

func (h *BaseHandler) WithPasswordStatus(reporter PasswordStatusReporter) *BaseHandler {
	h.PasswordStatus = reporter
	return h
}

type envelope struct {
	PasswordStatus password.Status `json:"password_status"`
	Data           interface{}     `json:"data"`
}

// WriteJSON writes a JSON response. Object payloads sent to an authenticated
// caller are wrapped with the caller's password expiry status.
func (h *BaseHandler) WriteJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	payload := data
	if r != nil && h.PasswordStatus != nil && isObject(data) {
		if p, ok := internal.PrincipalFromContext(r.Context()); ok {
			payload = envelope{
				PasswordStatus: h.PasswordStatus.ExpiryStatus(p.LastPasswordChange, time.Now()),
				Data:           data,
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.Logger.Error("failed to encode JSON response", "error", err)
	}
}

func isObject(data interface{}) bool {
	if data == nil {
		return false
	}
	v := reflect.ValueOf(data)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return false
		}
		v = v.Elem()
	}
	return v.Kind() == reflect.Struct || v.Kind() == reflect.Map
}

// WriteError writes an error response
func (h *BaseHandler) WriteError(w http.ResponseWriter, status int, message string) {
	h.Logger.Error("http error", "status", status, "message", message)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	errorResp := map[string]interface{}{
		"code":    status,
		"message": message,
	}

	if err := json.NewEncoder(w).Encode(errorResp); err != nil {
		h.Logger.Error("failed to encode error response", "error", err)
	}
}

// HandleServiceError maps domain errors to their HTTP status. Unclassified errors
// become a generic 500 and their detail stays in the log.
func (h *BaseHandler) HandleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := internal.IsAppError(err)
	if !ok || appErr.Type == internal.ErrorTypeInternal {
		h.Logger.Error("internal error", "error", err, "path", requestPath(r))
		appErr = internal.NewInternalError("internal server error", nil)
	} else if appErr.StatusCode >= 500 {
		h.Logger.Error("service error", "error", err, "path", requestPath(r))
	} else {
		h.Logger.Warn("request rejected", "code", appErr.Code, "message", appErr.GetDetailedMessage(), "path", requestPath(r))
	}

	status, body := appErr.ToHTTPResponse()
	if status == 0 {
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(body); encErr != nil {
		h.Logger.Error("failed to encode error response", "error", encErr)
	}
}

func requestPath(r *http.Request) string {
	if r == nil || r.URL == nil {
		return ""
	}
	return r.URL.Path
}

// ExtractTokenFromHeader extracts Bearer token from Authorization header
func (h *BaseHandler) ExtractTokenFromHeader(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	if len(authHeader) < 7 || !strings.EqualFold(authHeader[:7], "Bearer ") {
		return ""
	}

	return strings.TrimSpace(authHeader[7:])
}
