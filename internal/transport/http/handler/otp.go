package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-event-registration/internal/domain"
	"github.com/go-event-registration/internal/pkg/id"
	"github.com/go-event-registration/internal/pkg/validate"
)

// OTPService is what the OTP endpoints need from the ledger.
type OTPService interface {
	Issue(ctx context.Context, email string) (*domain.IssuedOTP, error)
	Verify(email, code string) bool
}

// TokenSigner issues the verification token returned by verify-otp.
type TokenSigner interface {
	SignVerification(email, sessionID string) (string, time.Time, error)
}

// OTPHandler handles send-otp and verify-otp.
type OTPHandler struct {
	svc    OTPService
	signer TokenSigner
}

// NewOTPHandler builds the handler. signer may be nil, in which case
// verify-otp answers without a token.
func NewOTPHandler(svc OTPService, signer TokenSigner) *OTPHandler {
	return &OTPHandler{svc: svc, signer: signer}
}

type sendOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type verifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
}

func (h *OTPHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "a valid email is required")
		return
	}
	issued, err := h.svc.Issue(r.Context(), req.Email)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	msg := "OTP sent to your email"
	if !issued.Delivered {
		msg = "OTP generated"
	}
	writeJSON(w, http.StatusOK, OTPEnvelope{Success: true, Message: msg, ExpiresAt: issued.ExpiresAt})
}

func (h *OTPHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.OTP = strings.TrimSpace(req.OTP)
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "email and a 6 digit code are required")
		return
	}
	if !h.svc.Verify(req.Email, req.OTP) {
		writeError(w, http.StatusBadRequest, "invalid or expired OTP")
		return
	}

	resp := VerifyEnvelope{Success: true, Message: "email verified"}
	if h.signer != nil {
		sessionID := r.Header.Get(sessionHeader)
		if sessionID == "" {
			sessionID = id.New()
		}
		signed, exp, err := h.signer.SignVerification(strings.ToLower(req.Email), sessionID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		resp.Token = signed
		resp.ExpiresAt = &exp
	}
	writeJSON(w, http.StatusOK, resp)
}
