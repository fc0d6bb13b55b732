package registration

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-event-registration/internal/domain"
	"github.com/go-event-registration/internal/pkg/validate"
)

// Submission is one registration attempt as received from the client.
type Submission struct {
	// SessionKey identifies the client session the single-flight guard is keyed on.
	SessionKey string `json:"-" validate:"required"`
	// VerifiedEmail is the email proven by a verification token, if the caller had one.
	VerifiedEmail string `json:"-"`

	StudentDetails    domain.StudentDetails    `json:"studentDetails"`
	EventSelection    domain.EventSelection    `json:"eventSelection"`
	Payment           domain.PaymentClaim      `json:"paymentData"`
	ParticipationType domain.ParticipationType `json:"participationType" validate:"required,oneof=individual team"`
	TeamMembers       []domain.TeamMember      `json:"teamMembers" validate:"omitempty,max=10,dive"`
}

func (s *Submission) normalize() {
	d := &s.StudentDetails
	d.Name = strings.TrimSpace(d.Name)
	d.Email = strings.ToLower(strings.TrimSpace(d.Email))
	d.Phone = strings.TrimSpace(d.Phone)
	d.College = strings.TrimSpace(d.College)
	d.Department = strings.TrimSpace(d.Department)
	d.Year = strings.TrimSpace(d.Year)
	d.RollNumber = strings.TrimSpace(d.RollNumber)
	for i := range s.TeamMembers {
		m := &s.TeamMembers[i]
		m.Name = strings.TrimSpace(m.Name)
		m.Email = strings.ToLower(strings.TrimSpace(m.Email))
		m.Phone = strings.TrimSpace(m.Phone)
	}
	for i := range s.EventSelection.SelectedEvents {
		e := &s.EventSelection.SelectedEvents[i]
		e.EventID = strings.TrimSpace(e.EventID)
		e.SubSelection = strings.TrimSpace(e.SubSelection)
	}
	s.Payment.UPITransactionID = strings.TrimSpace(s.Payment.UPITransactionID)
	s.Payment.PayerName = strings.TrimSpace(s.Payment.PayerName)
	s.Payment.PayerUPI = strings.TrimSpace(s.Payment.PayerUPI)
	s.Payment.VerificationID = strings.TrimSpace(s.Payment.VerificationID)
}

// fingerprint identifies what a normalized submission asks for: who registers,
// for which events, with which team and payment reference. Two submissions
// with the same fingerprint are the same registration.
func (s *Submission) fingerprint() string {
	h := sha256.New()
	field := func(v string) {
		h.Write([]byte(v))
		h.Write([]byte{0})
	}
	field(s.StudentDetails.Email)
	field(string(s.ParticipationType))
	for _, e := range s.EventSelection.SelectedEvents {
		field(e.EventID + "/" + e.SubSelection)
	}
	field(strconv.FormatFloat(s.EventSelection.TotalAmount, 'f', 2, 64))
	for _, m := range s.TeamMembers {
		field(m.Email)
	}
	field(s.Payment.UPITransactionID)
	field(s.Payment.VerificationID)
	return hex.EncodeToString(h.Sum(nil))
}

func invalid(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, domain.ErrValidation)...)
}

// check validates a normalized submission against the catalog. Event names are
// filled in from the catalog so that the event key is canonical, and the
// participant count and claim amount are defaulted when the client left them out.
func check(s *Submission, catalog *domain.Catalog) error {
	if err := validate.Struct(s); err != nil {
		return err
	}
	sel := &s.EventSelection

	size := 1 + len(s.TeamMembers)
	switch s.ParticipationType {
	case domain.ParticipationIndividual:
		if len(s.TeamMembers) > 0 {
			return invalid("individual registrations cannot list team members")
		}
	case domain.ParticipationTeam:
		if len(s.TeamMembers) == 0 {
			return invalid("team registrations need at least one team member")
		}
		seen := map[string]bool{s.StudentDetails.Email: true}
		for _, m := range s.TeamMembers {
			if seen[m.Email] {
				return invalid("team member %s is listed twice", m.Email)
			}
			seen[m.Email] = true
		}
	}

	var total float64
	seenEvents := make(map[string]bool, len(sel.SelectedEvents))
	for i := range sel.SelectedEvents {
		picked := &sel.SelectedEvents[i]
		ev, ok := catalog.Lookup(picked.EventID)
		if !ok {
			return invalid("unknown event %q", picked.EventID)
		}
		if seenEvents[ev.ID] {
			return invalid("event %s selected twice", ev.Name)
		}
		seenEvents[ev.ID] = true
		picked.Name = ev.Name

		if ev.Exclusive && len(sel.SelectedEvents) > 1 {
			return invalid("%s cannot be combined with other events", ev.Name)
		}
		switch {
		case picked.SubSelection == "" && ev.SubSelectionRequired:
			return invalid("%s requires choosing one of %s", ev.Name, strings.Join(ev.SubSelections, ", "))
		case picked.SubSelection != "" && !ev.AllowsSubSelection(picked.SubSelection):
			return invalid("%q is not a variant of %s", picked.SubSelection, ev.Name)
		}

		if s.ParticipationType == domain.ParticipationTeam {
			if !ev.TeamEvent() {
				return invalid("%s is an individual event", ev.Name)
			}
			if ev.ExactTeamSize > 0 && size != ev.ExactTeamSize {
				return invalid("%s requires exactly %d participants, got %d", ev.Name, ev.ExactTeamSize, size)
			}
			if ev.MaxTeamSize > 0 && size > ev.MaxTeamSize {
				return invalid("%s allows at most %d participants, got %d", ev.Name, ev.MaxTeamSize, size)
			}
		} else if ev.ExactTeamSize > 1 {
			return invalid("%s requires a team of exactly %d", ev.Name, ev.ExactTeamSize)
		}
		total += ev.Fee
	}

	if !sameAmount(sel.TotalAmount, total) {
		return invalid("total amount %.2f does not match event fees %.2f", sel.TotalAmount, total)
	}
	switch {
	case s.Payment.Amount == 0:
		s.Payment.Amount = total
	case !sameAmount(s.Payment.Amount, total):
		return invalid("paid amount %.2f does not match total %.2f", s.Payment.Amount, total)
	}
	switch {
	case sel.ParticipantCount == 0:
		sel.ParticipantCount = size
	case sel.ParticipantCount != size:
		return invalid("participant count %d does not match %d participants", sel.ParticipantCount, size)
	}
	return nil
}

func sameAmount(a, b float64) bool {
	return math.Abs(a-b) < 0.005
}
