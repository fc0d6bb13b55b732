package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-event-registration/internal/domain"
)

// PaymentService is the claim intake and review surface.
type PaymentService interface {
	SubmitClaim(ctx context.Context, claim domain.PaymentClaim) (*domain.UPIVerification, error)
	Review(ctx context.Context, verificationID string, decision domain.ReviewDecision) (*domain.UPIVerification, error)
}

// PaymentHandler handles UPI claim intake and admin review.
type PaymentHandler struct {
	svc PaymentService
}

func NewPaymentHandler(svc PaymentService) *PaymentHandler { return &PaymentHandler{svc: svc} }

type verifyUPIRequest struct {
	UPITransactionID string `json:"upiTransactionId"`
	PayerName        string `json:"payerName"`
	PayerUPI         string `json:"payerUPI"`
	TransactionData  struct {
		Amount float64 `json:"amount"`
	} `json:"transactionData"`
}

type reviewRequest struct {
	Decision domain.ReviewDecision `json:"decision"`
}

// VerifyUPI records a payment claim. Nothing is checked against a bank; the
// response only says the claim awaits review.
func (h *PaymentHandler) VerifyUPI(w http.ResponseWriter, r *http.Request) {
	var req verifyUPIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	v, err := h.svc.SubmitClaim(r.Context(), domain.PaymentClaim{
		UPITransactionID: req.UPITransactionID,
		PayerName:        req.PayerName,
		PayerUPI:         req.PayerUPI,
		Amount:           req.TransactionData.Amount,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, VerificationEnvelope{
		Success:      true,
		Message:      "payment claim recorded, pending manual verification",
		Verification: v,
	})
}

func (h *PaymentHandler) Review(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	decision := domain.ReviewDecision(strings.ToLower(strings.TrimSpace(string(req.Decision))))
	v, err := h.svc.Review(r.Context(), chi.URLParam(r, "verificationId"), decision)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, VerificationEnvelope{Success: true, Verification: v})
}
