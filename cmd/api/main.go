package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-event-registration/internal/application/backup"
	"github.com/go-event-registration/internal/application/notification"
	"github.com/go-event-registration/internal/application/otp"
	"github.com/go-event-registration/internal/application/payment"
	"github.com/go-event-registration/internal/application/reconcile"
	"github.com/go-event-registration/internal/application/registration"
	"github.com/go-event-registration/internal/application/team"
	"github.com/go-event-registration/internal/config"
	"github.com/go-event-registration/internal/domain"
	"github.com/go-event-registration/internal/infrastructure/dynamo"
	"github.com/go-event-registration/internal/infrastructure/filestore"
	jwtinfra "github.com/go-event-registration/internal/infrastructure/jwt"
	"github.com/go-event-registration/internal/infrastructure/metrics"
	s3infra "github.com/go-event-registration/internal/infrastructure/s3"
	sheetsinfra "github.com/go-event-registration/internal/infrastructure/sheets"
	"github.com/go-event-registration/internal/infrastructure/smtp"
	"github.com/go-event-registration/internal/infrastructure/sns"
	transporthttp "github.com/go-event-registration/internal/transport/http"
	"github.com/joho/godotenv"
)

// store is the local durable store; both backends implement it.
type store interface {
	CommitRegistration(ctx context.Context, c domain.RegistrationCommit) error
	PutVerification(ctx context.Context, v *domain.UPIVerification) error
	GetVerification(ctx context.Context, verificationID string) (*domain.UPIVerification, error)
	FindVerificationByUPI(ctx context.Context, upiTransactionID string) (*domain.UPIVerification, error)
	ApplyReview(ctx context.Context, verificationID string, next domain.VerificationStatus, at time.Time) (*domain.UPIVerification, error)
	FindTeam(ctx context.Context, leaderEmail, eventKey string) (string, error)
	ListByTeam(ctx context.Context, teamID string) ([]domain.Registration, error)
	UpdateRoster(ctx context.Context, teamID string, roster domain.Roster) error
	ListUnsynced(ctx context.Context) ([]domain.Registration, error)
	MarkSynced(ctx context.Context, registrationID string, at time.Time) error
	GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error)
	Export(ctx context.Context) (map[string][]byte, error)
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	catalog := domain.DefaultCatalog()
	if cfg.EventCatalogPath != "" {
		data, err := os.ReadFile(cfg.EventCatalogPath)
		if err != nil {
			log.Fatalf("read event catalog: %v", err)
		}
		if catalog, err = domain.ParseCatalog(data); err != nil {
			log.Fatalf("parse event catalog: %v", err)
		}
	}

	local, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("open %s store: %v", cfg.StoreBackend, err)
	}

	m := metrics.New()

	// Remote sync is optional; every consumer gets a nil interface when it is off.
	var (
		sheetsClient *sheetsinfra.Client
		remoteSync   registration.RemoteSync
		remoteTeams  team.RemoteTeams
	)
	if cfg.SheetsConfigured() {
		if c, err := sheetsinfra.New(ctx, cfg); err == nil {
			sheetsClient, remoteSync, remoteTeams = c, c, c
		} else {
			log.Printf("WARN: spreadsheet sync not available: %v", err)
		}
	} else {
		log.Println("Spreadsheet credentials not set, remote sync disabled")
	}

	var mailer smtp.Mailer
	var ledgerMailer otp.Mailer
	if cfg.MailConfigured() {
		mailer = smtp.NewMailer(cfg)
		ledgerMailer = mailer
	} else {
		log.Println("SMTP credentials not set, OTP delivery simulated")
	}
	ledger := otp.NewLedger(otp.LedgerDeps{
		Mailer:   ledgerMailer,
		TTL:      cfg.OTPTTL,
		HashCost: cfg.OTPHashCost,
		Metrics:  m,
	})
	go ledger.Run(ctx, time.Minute)

	notifyDeps := notification.ServiceDeps{Mailer: mailer}
	if cfg.SMSEnabled {
		if sender, err := sns.NewSender(ctx, cfg); err == nil {
			notifyDeps.SMS = sender
		} else {
			log.Printf("WARN: SNS sender not available: %v", err)
		}
	}

	payments := payment.NewService(payment.ServiceDeps{Store: local, Metrics: m})
	teams := team.NewResolver(team.ResolverDeps{Store: local, Remote: remoteTeams, Metrics: m})
	coordinator := registration.NewCoordinator(registration.CoordinatorDeps{
		Store:       local,
		Claims:      payments,
		Teams:       teams,
		Remote:      remoteSync,
		Emails:      ledger,
		Notifier:    notification.NewService(notifyDeps),
		Catalog:     catalog,
		Metrics:     m,
		SyncTimeout: cfg.SheetsTimeout,
	})

	if sheetsClient != nil {
		reconciler := reconcile.NewReconciler(reconcile.ReconcilerDeps{
			Local:   local,
			Remote:  sheetsClient,
			Timeout: cfg.SheetsTimeout,
			Settle:  cfg.SheetsTimeout,
			Metrics: m,
		})
		go reconciler.Run(ctx, cfg.ReconcileInterval)
	}

	if cfg.S3BackupBucket != "" {
		if client, err := s3infra.NewClient(ctx, cfg); err == nil {
			backups := backup.NewService(backup.ServiceDeps{
				Source: local,
				Dest:   s3infra.NewStore(client, cfg.S3BackupBucket),
			})
			go backups.Run(ctx, cfg.BackupInterval)
		} else {
			log.Printf("WARN: S3 backups not available: %v", err)
		}
	}

	// JWT provider (optional; without keys the OTP ledger is the email proof).
	var jwtProvider *jwtinfra.Provider
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		jwtProvider = p
	} else {
		log.Printf("WARN: JWT provider not available: %v", err)
	}

	router := transporthttp.NewRouter(cfg, &transporthttp.Deps{
		OTP:           ledger,
		Payments:      payments,
		Registrations: coordinator,
		Teams:         local,
		JWTProvider:   jwtProvider,
		Metrics:       m.Handler(),
		StoreBackend:  cfg.StoreBackend,
		SheetsReady:   sheetsClient.Ready,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s, store=%s)", cfg.AppPort, cfg.AppEnv, cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}

func openStore(ctx context.Context, cfg *config.Config) (store, error) {
	switch cfg.StoreBackend {
	case "file", "":
		return filestore.Open(cfg.DataDir)
	case "dynamo":
		client, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		// Creates the tables if they don't exist.
		dynamo.Bootstrap(ctx, client, cfg.DynamoTables)
		return dynamo.NewStore(client, cfg.DynamoTables), nil
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
}
