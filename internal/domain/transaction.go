package domain

import "time"

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
)

const (
	CurrencyINR   = "INR"
	PaymentMethod = "UPI"
)

// CustomerInfo is the payer-side view of the registering student.
type CustomerInfo struct {
	Name  string `json:"name" dynamodbav:"name"`
	Email string `json:"email" dynamodbav:"email"`
	Phone string `json:"phone" dynamodbav:"phone"`
}

// Transaction records a payment claim attached to a registration. It is written
// once; only Status changes afterwards, driven by payment review.
type Transaction struct {
	TransactionID    string            `json:"transactionId" dynamodbav:"transaction_id"`
	TeamID           *string           `json:"teamId" dynamodbav:"team_id"`
	RegistrationID   *string           `json:"registrationId" dynamodbav:"registration_id"`
	Customer         CustomerInfo      `json:"customerInfo" dynamodbav:"customer_info"`
	EventID          string            `json:"eventId" dynamodbav:"event_id"`
	Amount           float64           `json:"amount" dynamodbav:"amount"`
	Currency         string            `json:"currency" dynamodbav:"currency"`
	PaymentMethod    string            `json:"paymentMethod" dynamodbav:"payment_method"`
	Status           TransactionStatus `json:"status" dynamodbav:"status"`
	SubmittedAt      time.Time         `json:"submittedAt" dynamodbav:"submitted_at"`
	VerificationData UPIVerification   `json:"verificationData" dynamodbav:"verification_data"`
}
