package http

import (
	"net/http"

	jwtinfra "github.com/go-event-registration/internal/infrastructure/jwt"
	"github.com/go-event-registration/internal/transport/http/handler"
)

// Deps holds the application services the router exposes. JWTProvider and
// SheetsReady are optional.
type Deps struct {
	OTP           handler.OTPService
	Payments      handler.PaymentService
	Registrations handler.Submitter
	Teams         handler.TeamLister
	JWTProvider   *jwtinfra.Provider
	Metrics       http.Handler
	StoreBackend  string
	SheetsReady   func() bool
}
