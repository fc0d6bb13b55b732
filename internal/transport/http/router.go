package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-event-registration/internal/config"
	"github.com/go-event-registration/internal/transport/http/handler"
	appmiddleware "github.com/go-event-registration/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Session-ID", "X-Admin-Key"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// 5 requests/second, burst of 10, on endpoints that send mail or write.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	var signer handler.TokenSigner
	if deps.JWTProvider != nil {
		signer = deps.JWTProvider
	}

	healthH := handler.NewHealthHandler(deps.StoreBackend, deps.SheetsReady)
	otpH := handler.NewOTPHandler(deps.OTP, signer)
	paymentH := handler.NewPaymentHandler(deps.Payments)
	regH := handler.NewRegistrationHandler(deps.Registrations, deps.Teams, deps.JWTProvider != nil)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", healthH.Check)

		r.Group(func(r chi.Router) {
			r.Use(sensitiveRL.Limit)

			r.Post("/send-otp", otpH.Send)
			r.Post("/verify-otp", otpH.Verify)
			r.Post("/verify-upi-payment", paymentH.VerifyUPI)
			r.With(appmiddleware.OptionalAuth(deps.JWTProvider)).Post("/register", regH.Register)
		})

		// Team rows carry contact details, so lookups sit behind the admin key.
		r.Group(func(r chi.Router) {
			r.Use(appmiddleware.RequireAdminKey(cfg.AdminAPIKey))

			r.Get("/registrations/{teamId}", regH.GetTeam)
			r.Post("/admin/payments/{verificationId}/review", paymentH.Review)
		})
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	return r
}
