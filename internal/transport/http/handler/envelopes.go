package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-event-registration/internal/domain"
)

// ErrorEnvelope is the body of every failed response.
type ErrorEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// MessageEnvelope wraps responses that only carry a message.
type MessageEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// OTPEnvelope answers send-otp.
type OTPEnvelope struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// VerifyEnvelope answers verify-otp. Token is set only when signing keys are configured.
type VerifyEnvelope struct {
	Success   bool       `json:"success"`
	Message   string     `json:"message"`
	Token     string     `json:"token,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// RegisterEnvelope answers a registration submission.
type RegisterEnvelope struct {
	Success        bool   `json:"success"`
	RegistrationID string `json:"registrationId"`
	TeamID         string `json:"teamId"`
}

// VerificationEnvelope answers the payment intake and review endpoints.
type VerificationEnvelope struct {
	Success      bool                    `json:"success"`
	Message      string                  `json:"message,omitempty"`
	Verification *domain.UPIVerification `json:"verification"`
}

// TeamEnvelope lists the registrations of one team.
type TeamEnvelope struct {
	Success       bool                  `json:"success"`
	TeamID        string                `json:"teamId"`
	Roster        domain.Roster         `json:"roster"`
	Registrations []domain.Registration `json:"registrations"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorEnvelope{Error: msg})
}

// writeDomainError maps a service error onto its HTTP status. Validation and
// conflict messages are safe to show; anything else is reported generically.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "email not verified")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrExternalService):
		writeError(w, http.StatusBadGateway, "upstream service unavailable")
	case errors.Is(err, domain.ErrNotInitialized):
		writeError(w, http.StatusServiceUnavailable, "service not initialized")
	default:
		slog.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
