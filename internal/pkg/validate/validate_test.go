package validate

import (
	"testing"

	"github.com/go-event-registration/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestStruct_ReportsJSONNames(t *testing.T) {
	err := Struct(domain.PaymentClaim{PayerName: "Asha"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.ErrorContains(t, err, "upiTransactionId")
}

func TestStruct_Valid(t *testing.T) {
	assert.NoError(t, Struct(domain.PaymentClaim{UPITransactionID: "123456789012", PayerName: "Asha"}))
}
