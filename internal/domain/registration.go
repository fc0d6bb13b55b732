package domain

import (
	"strings"
	"time"
)

type ParticipationType string

const (
	ParticipationIndividual ParticipationType = "individual"
	ParticipationTeam       ParticipationType = "team"
)

// NoTeam is the team id carried by individual registrations.
const NoTeam = ""

// RegistrationStatusPending is the status of every freshly created registration;
// it only changes once the payment claim has been reviewed.
const RegistrationStatusPending = "Pending Verification"

type StudentDetails struct {
	Name       string `json:"name" dynamodbav:"name" validate:"required,max=120"`
	Email      string `json:"email" dynamodbav:"email" validate:"required,email"`
	Phone      string `json:"phone" dynamodbav:"phone" validate:"required,min=10,max=15"`
	College    string `json:"college" dynamodbav:"college" validate:"required,max=200"`
	Department string `json:"department,omitempty" dynamodbav:"department" validate:"max=120"`
	Year       string `json:"year,omitempty" dynamodbav:"year" validate:"max=20"`
	RollNumber string `json:"rollNumber,omitempty" dynamodbav:"roll_number" validate:"max=40"`
}

type TeamMember struct {
	Name  string `json:"name" dynamodbav:"name" validate:"required,max=120"`
	Email string `json:"email" dynamodbav:"email" validate:"required,email"`
	Phone string `json:"phone" dynamodbav:"phone" validate:"omitempty,min=10,max=15"`
}

type SelectedEvent struct {
	EventID      string `json:"eventId" dynamodbav:"event_id" validate:"required"`
	Name         string `json:"name,omitempty" dynamodbav:"name"`
	SubSelection string `json:"subSelection,omitempty" dynamodbav:"sub_selection"`
}

type EventSelection struct {
	SelectedEvents   []SelectedEvent `json:"selectedEvents" dynamodbav:"selected_events" validate:"required,min=1,dive"`
	TotalAmount      float64         `json:"totalAmount" dynamodbav:"total_amount" validate:"gte=0"`
	ParticipantCount int             `json:"participantCount" dynamodbav:"participant_count" validate:"gte=0"`
}

// EventKey is the string team lookups match on: the selected event names in
// submission order, sub-selection included when present.
func (s EventSelection) EventKey() string {
	parts := make([]string, 0, len(s.SelectedEvents))
	for _, e := range s.SelectedEvents {
		name := e.Name
		if name == "" {
			name = e.EventID
		}
		if e.SubSelection != "" {
			name += " (" + e.SubSelection + ")"
		}
		parts = append(parts, name)
	}
	return strings.Join(parts, ", ")
}

// PaymentData is the payment section of a registration.
type PaymentData struct {
	TransactionID string          `json:"transactionId" dynamodbav:"transaction_id"`
	Amount        float64         `json:"amount" dynamodbav:"amount"`
	Verification  UPIVerification `json:"upiVerification" dynamodbav:"upi_verification"`
}

// Roster is the denormalised team membership written onto every row of a team.
type Roster struct {
	Size   int    `json:"size" dynamodbav:"size"`
	Names  string `json:"names" dynamodbav:"names"`
	Emails string `json:"emails" dynamodbav:"emails"`
	Phones string `json:"phones" dynamodbav:"phones"`
}

// NewRoster recomputes the roster from the full membership list.
func NewRoster(members []TeamMember) Roster {
	names := make([]string, 0, len(members))
	emails := make([]string, 0, len(members))
	phones := make([]string, 0, len(members))
	for _, m := range members {
		names = append(names, m.Name)
		emails = append(emails, m.Email)
		phones = append(phones, m.Phone)
	}
	return Roster{
		Size:   len(members),
		Names:  strings.Join(names, ", "),
		Emails: strings.Join(emails, ", "),
		Phones: strings.Join(phones, ", "),
	}
}

type Registration struct {
	RegistrationID    string            `json:"registrationId" dynamodbav:"registration_id"`
	TeamID            string            `json:"teamId" dynamodbav:"team_id,omitempty"`
	EventKey          string            `json:"eventKey" dynamodbav:"event_key"`
	SessionKey        string            `json:"-" dynamodbav:"session_key"`
	StudentDetails    StudentDetails    `json:"studentDetails" dynamodbav:"student_details"`
	EventSelection    EventSelection    `json:"eventSelection" dynamodbav:"event_selection"`
	ParticipationType ParticipationType `json:"participationType" dynamodbav:"participation_type"`
	TeamMembers       []TeamMember      `json:"teamMembers" dynamodbav:"team_members"`
	Roster            Roster            `json:"roster" dynamodbav:"roster"`
	Payment           PaymentData       `json:"paymentData" dynamodbav:"payment_data"`
	RegisteredAt      time.Time         `json:"registeredAt" dynamodbav:"registered_at"`
	Status            string            `json:"status" dynamodbav:"status"`
	SyncedAt          *time.Time        `json:"syncedAt,omitempty" dynamodbav:"synced_at,omitempty"`
}

// Members returns the full membership with the registering student first.
func (r *Registration) Members() []TeamMember {
	out := make([]TeamMember, 0, len(r.TeamMembers)+1)
	out = append(out, TeamMember{
		Name:  r.StudentDetails.Name,
		Email: r.StudentDetails.Email,
		Phone: r.StudentDetails.Phone,
	})
	return append(out, r.TeamMembers...)
}

// RegistrationCommit groups the records a successful submission persists
// together. Verification is nil when the claim was recorded earlier by the intake.
type RegistrationCommit struct {
	Registration *Registration
	Transaction  *Transaction
	Verification *UPIVerification
}

// SubmissionResult is what the caller of a registration submission receives.
type SubmissionResult struct {
	RegistrationID string `json:"registrationId"`
	TeamID         string `json:"teamId"`
}
