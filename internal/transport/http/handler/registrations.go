package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-event-registration/internal/application/registration"
	"github.com/go-event-registration/internal/domain"
	"github.com/go-event-registration/internal/transport/http/middleware"
)

const sessionHeader = "X-Session-ID"

// Submitter runs a registration submission.
type Submitter interface {
	Submit(ctx context.Context, sub registration.Submission) (*domain.SubmissionResult, error)
}

// TeamLister reads the local rows of a team.
type TeamLister interface {
	ListByTeam(ctx context.Context, teamID string) ([]domain.Registration, error)
}

// RegistrationHandler handles submissions and team lookups.
type RegistrationHandler struct {
	svc          Submitter
	teams        TeamLister
	requireToken bool
}

// NewRegistrationHandler builds the handler. With requireToken set, a
// submission must carry a verification token issued by verify-otp.
func NewRegistrationHandler(svc Submitter, teams TeamLister, requireToken bool) *RegistrationHandler {
	return &RegistrationHandler{svc: svc, teams: teams, requireToken: requireToken}
}

type registerRequest struct {
	StudentDetails    domain.StudentDetails    `json:"studentDetails"`
	EventSelection    domain.EventSelection    `json:"eventSelection"`
	PaymentData       paymentDataRequest       `json:"paymentData"`
	ParticipationType domain.ParticipationType `json:"participationType"`
	TeamMembers       []domain.TeamMember      `json:"teamMembers"`
}

type paymentDataRequest struct {
	TransactionID   string              `json:"transactionId"`
	Amount          float64             `json:"amount"`
	UPIVerification domain.PaymentClaim `json:"upiVerification"`
}

func (p paymentDataRequest) claim() domain.PaymentClaim {
	c := p.UPIVerification
	if c.UPITransactionID == "" {
		c.UPITransactionID = p.TransactionID
	}
	if c.Amount == 0 {
		c.Amount = p.Amount
	}
	return c
}

func (h *RegistrationHandler) Register(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	var req registerRequest
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sub := registration.Submission{
		SessionKey:        strings.TrimSpace(r.Header.Get(sessionHeader)),
		StudentDetails:    req.StudentDetails,
		EventSelection:    req.EventSelection,
		Payment:           req.PaymentData.claim(),
		ParticipationType: req.ParticipationType,
		TeamMembers:       req.TeamMembers,
	}
	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok {
		sub.VerifiedEmail = claims.Email
		if claims.SessionID != "" {
			sub.SessionKey = claims.SessionID
		}
	} else if h.requireToken {
		writeError(w, http.StatusUnauthorized, "email verification token required")
		return
	}

	res, err := h.svc.Submit(r.Context(), sub)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RegisterEnvelope{Success: true, RegistrationID: res.RegistrationID, TeamID: res.TeamID})
}

func (h *RegistrationHandler) GetTeam(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamId")
	if teamID == "" {
		writeError(w, http.StatusBadRequest, "team id is required")
		return
	}
	regs, err := h.teams.ListByTeam(r.Context(), teamID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if len(regs) == 0 {
		writeError(w, http.StatusNotFound, "team not found")
		return
	}
	writeJSON(w, http.StatusOK, TeamEnvelope{
		Success:       true,
		TeamID:        teamID,
		Roster:        regs[len(regs)-1].Roster,
		Registrations: regs,
	})
}
