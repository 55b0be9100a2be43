package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration of the application.
type Config struct {
	DatabaseURL  string
	JWTSecretKey string
	ServerPort   int
	Environment  string

	// Feature flags.
	EmailVerificationRequired  bool
	MinAgeVerificationRequired bool

	// NationalTeamClubID is the club allowed to enter national team rosters
	// at international tournaments. Zero means no club has the permission.
	NationalTeamClubID int

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	// FeesCheckEmail receives the season fee summary before invoices are
	// generated.
	FeesCheckEmail string

	FakturoidBaseURL      string
	FakturoidAccountSlug  string
	FakturoidClientID     string
	FakturoidClientSecret string

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2Bucket          string
	R2PublicBaseURL   string
}

// Load reads configuration from environment variables. A .env file is loaded
// first when present, which is convenient for local development.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	jwtKey := os.Getenv("JWT_SECRET_KEY")
	if jwtKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	port, err := intEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	smtpPort, err := intEnv("SMTP_PORT", 587)
	if err != nil {
		return nil, err
	}

	nationalTeamClubID, err := intEnv("NATIONAL_TEAM_CLUB_ID", 0)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseURL:  dbURL,
		JWTSecretKey: jwtKey,
		ServerPort:   port,
		Environment:  envOrDefault("ENVIRONMENT", "development"),

		EmailVerificationRequired:  boolEnv("FF_EMAIL_VERIFICATION_REQUIRED", true),
		MinAgeVerificationRequired: boolEnv("FF_MIN_AGE_VERIFICATION_REQUIRED", true),
		NationalTeamClubID:         nationalTeamClubID,

		SMTPHost: os.Getenv("SMTP_HOST"),
		SMTPPort: smtpPort,
		SMTPUser: os.Getenv("SMTP_USER"),
		SMTPPass: os.Getenv("SMTP_PASS"),
		SMTPFrom: os.Getenv("SMTP_FROM"),

		FeesCheckEmail: os.Getenv("FEES_CHECK_EMAIL"),

		FakturoidBaseURL:      envOrDefault("FAKTUROID_BASE_URL", "https://app.fakturoid.cz/api/v3"),
		FakturoidAccountSlug:  os.Getenv("FAKTUROID_ACCOUNT_SLUG"),
		FakturoidClientID:     os.Getenv("FAKTUROID_CLIENT_ID"),
		FakturoidClientSecret: os.Getenv("FAKTUROID_CLIENT_SECRET"),

		R2AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2Bucket:          os.Getenv("R2_BUCKET"),
		R2PublicBaseURL:   os.Getenv("R2_PUBLIC_BASE_URL"),
	}

	return cfg, nil
}

// IsProduction gates side effects that must not fire from local setups, like
// outgoing email.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return value, nil
}

func boolEnv(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}
