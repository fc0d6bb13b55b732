package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	DataDir      string
	StoreBackend string // "file" | "dynamo"

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	S3BackupBucket string
	BackupInterval time.Duration

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	SNSRegion  string
	SMSEnabled bool

	GoogleSheetID            string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string
	SheetsTimeout            time.Duration
	ReconcileInterval        time.Duration

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration

	OTPTTL      time.Duration
	OTPHashCost int

	AdminAPIKey      string
	EventCatalogPath string
	AllowedOrigins   []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each local collection.
type DynamoTables struct {
	Registrations    string
	Transactions     string
	UPIVerifications string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:        getEnv("APP_PORT", "3000"),
		AppEnv:         getEnv("APP_ENV", "development"),
		DataDir:        getEnv("DATA_DIR", "./data"),
		StoreBackend:   getEnv("STORE_BACKEND", "file"),
		AWSRegion:      getEnv("AWS_REGION", "ap-south-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Registrations:    getEnv("DYNAMO_TABLE_REGISTRATIONS", "registrations"),
			Transactions:     getEnv("DYNAMO_TABLE_TRANSACTIONS", "transactions"),
			UPIVerifications: getEnv("DYNAMO_TABLE_UPI_VERIFICATIONS", "upi_verifications"),
		},
		S3BackupBucket:           getEnv("S3_BACKUP_BUCKET", ""),
		BackupInterval:           getEnvDuration("BACKUP_INTERVAL", time.Hour),
		SMTPHost:                 getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:                 getEnv("SMTP_PORT", "587"),
		SMTPFrom:                 getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername:             getEnv("SMTP_USERNAME", ""),
		SMTPPassword:             getEnv("SMTP_PASSWORD", ""),
		SNSRegion:                getEnv("SNS_REGION", "ap-south-1"),
		SMSEnabled:               getEnvBool("SMS_ENABLED", false),
		GoogleSheetID:            getEnv("GOOGLE_SHEET_ID", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		SheetsTimeout:            getEnvDuration("SHEETS_TIMEOUT", 10*time.Second),
		ReconcileInterval:        getEnvDuration("RECONCILE_INTERVAL", 5*time.Minute),
		JWTPrivateKeyPath:        getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:         getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:                getEnvDuration("JWT_EXPIRY", time.Hour),
		OTPTTL:                   getEnvDuration("OTP_TTL", 10*time.Minute),
		OTPHashCost:              getEnvInt("OTP_HASH_COST", 4),
		AdminAPIKey:              getEnv("ADMIN_API_KEY", ""),
		EventCatalogPath:         getEnv("EVENT_CATALOG_PATH", ""),
		AllowedOrigins:           strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

// MailConfigured reports whether SMTP credentials are present. Without them OTP
// delivery degrades to a logged, simulated send.
func (c *Config) MailConfigured() bool {
	return c.SMTPUsername != "" && c.SMTPPassword != ""
}

// SheetsConfigured reports whether the remote spreadsheet can be reached at all.
func (c *Config) SheetsConfigured() bool {
	return c.GoogleSheetID != "" && (c.GoogleServiceAccountFile != "" || c.GoogleServiceAccountJSON != "")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
