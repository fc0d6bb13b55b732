package sheetsinfra

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-event-registration/internal/domain"
)

const (
	RegistrationsSheet = "Registrations"
	TransactionsSheet  = "Transactions"

	registrationsRange = RegistrationsSheet + "!A:W"
	transactionsRange  = TransactionsSheet + "!A:M"
	// roster columns M..P: team size, member names, member emails, member phones
	rosterRangeFmt = RegistrationsSheet + "!M%d:P%d"
)

// Registrations sheet column indexes (0-based, A = 0).
const (
	colRegTeamID = iota
	colRegRegistrationID
	colRegRegisteredAt
	colRegName
	colRegEmail
	colRegPhone
	colRegCollege
	colRegDepartment
	colRegYear
	colRegRollNumber
	colRegEvents
	colRegParticipation
	colRegTeamSize
	colRegMemberNames
	colRegMemberEmails
	colRegMemberPhones
	colRegTotalAmount
	colRegParticipantCount
	colRegUPITransactionID
	colRegPayerName
	colRegPayerUPI
	colRegVerificationID
	colRegStatus
	registrationColumns
)

// Transactions sheet column indexes; Team ID lives in column B.
const (
	colTxTransactionID = iota
	colTxTeamID
	colTxRegistrationID
	colTxCustomerName
	colTxCustomerEmail
	colTxCustomerPhone
	colTxEvent
	colTxAmount
	colTxCurrency
	colTxPaymentMethod
	colTxStatus
	colTxSubmittedAt
	colTxUPITransactionID
	transactionColumns
)

var RegistrationHeaders = []string{
	"Team ID", "Registration ID", "Registered At", "Name", "Email", "Phone", "College",
	"Department", "Year", "Roll Number", "Events", "Participation Type", "Team Size",
	"Team Member Names", "Team Member Emails", "Team Member Phones", "Total Amount",
	"Participant Count", "UPI Transaction ID", "Payer Name", "Payer UPI",
	"Verification ID", "Status",
}

var TransactionHeaders = []string{
	"Transaction ID", "Team ID", "Registration ID", "Customer Name", "Customer Email",
	"Customer Phone", "Event", "Amount", "Currency", "Payment Method", "Status",
	"Submitted At", "UPI Transaction ID",
}

// Row is one sheet row with its 1-based position in the sheet.
type Row struct {
	Number int
	Cells  []string
}

func (r Row) cell(i int) string {
	if i < len(r.Cells) {
		return r.Cells[i]
	}
	return ""
}

func (r Row) TeamID() string         { return r.cell(colRegTeamID) }
func (r Row) RegistrationID() string { return r.cell(colRegRegistrationID) }
func (r Row) Email() string          { return r.cell(colRegEmail) }
func (r Row) Events() string         { return r.cell(colRegEvents) }

func registrationRow(r *domain.Registration) []interface{} {
	row := make([]interface{}, registrationColumns)
	roster := r.Roster
	if roster.Size == 0 {
		roster = domain.NewRoster(r.Members())
	}
	row[colRegTeamID] = r.TeamID
	row[colRegRegistrationID] = r.RegistrationID
	row[colRegRegisteredAt] = r.RegisteredAt.UTC().Format(time.RFC3339)
	row[colRegName] = r.StudentDetails.Name
	row[colRegEmail] = r.StudentDetails.Email
	row[colRegPhone] = r.StudentDetails.Phone
	row[colRegCollege] = r.StudentDetails.College
	row[colRegDepartment] = r.StudentDetails.Department
	row[colRegYear] = r.StudentDetails.Year
	row[colRegRollNumber] = r.StudentDetails.RollNumber
	row[colRegEvents] = r.EventKey
	row[colRegParticipation] = string(r.ParticipationType)
	row[colRegTeamSize] = strconv.Itoa(roster.Size)
	row[colRegMemberNames] = roster.Names
	row[colRegMemberEmails] = roster.Emails
	row[colRegMemberPhones] = roster.Phones
	row[colRegTotalAmount] = formatAmount(r.EventSelection.TotalAmount)
	row[colRegParticipantCount] = strconv.Itoa(r.EventSelection.ParticipantCount)
	row[colRegUPITransactionID] = r.Payment.Verification.UPITransactionID
	row[colRegPayerName] = r.Payment.Verification.PayerName
	row[colRegPayerUPI] = r.Payment.Verification.PayerUPI
	row[colRegVerificationID] = r.Payment.Verification.VerificationID
	row[colRegStatus] = r.Status
	return row
}

func transactionRow(t *domain.Transaction) []interface{} {
	row := make([]interface{}, transactionColumns)
	row[colTxTransactionID] = t.TransactionID
	row[colTxTeamID] = deref(t.TeamID)
	row[colTxRegistrationID] = deref(t.RegistrationID)
	row[colTxCustomerName] = t.Customer.Name
	row[colTxCustomerEmail] = t.Customer.Email
	row[colTxCustomerPhone] = t.Customer.Phone
	row[colTxEvent] = t.EventID
	row[colTxAmount] = formatAmount(t.Amount)
	row[colTxCurrency] = t.Currency
	row[colTxPaymentMethod] = t.PaymentMethod
	row[colTxStatus] = string(t.Status)
	row[colTxSubmittedAt] = t.SubmittedAt.UTC().Format(time.RFC3339)
	row[colTxUPITransactionID] = t.VerificationData.UPITransactionID
	return row
}

func rosterValues(roster domain.Roster) []interface{} {
	return []interface{}{strconv.Itoa(roster.Size), roster.Names, roster.Emails, roster.Phones}
}

func headerRow(headers []string) []interface{} {
	out := make([]interface{}, len(headers))
	for i, h := range headers {
		out[i] = h
	}
	return out
}

// toRows converts raw sheet values, skipping a header row when present.
func toRows(values [][]interface{}, firstHeader string) []Row {
	rows := make([]Row, 0, len(values))
	for i, raw := range values {
		cells := make([]string, len(raw))
		for j, v := range raw {
			cells[j] = strings.TrimSpace(fmt.Sprint(v))
		}
		if i == 0 && len(cells) > 0 && cells[0] == firstHeader {
			continue
		}
		rows = append(rows, Row{Number: i + 1, Cells: cells})
	}
	return rows
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
