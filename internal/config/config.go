package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// JWT
	JWTSecret        string
	JWTAccessExpiry  time.Duration
	JWTRefreshExpiry time.Duration
	MagicLinkExpiry  time.Duration

	// Admin
	AdminEmails string
	AdminToken  string

	// Server
	Port          string
	CORSOrigins   string
	PublicBaseURL string
	AppEnv        string

	// TrustedProxies are the load balancer addresses or CIDRs whose X-Forwarded-For
	// header is believed. Empty means the socket address is the client.
	TrustedProxies []string

	// Referral tracking
	StorefrontURL            string
	WebflowFormSecret        string
	AutoProvisionFromWebflow bool
	AttributionWindow        time.Duration
	DefaultCurrency          string
	UplineRate               decimal.Decimal

	// Email
	SMTPHost         string
	SMTPPort         int
	SMTPUser         string
	SMTPPass         string
	EmailFrom        string
	AdminNotifyEmail string

	// Login throttling
	RedisURL         string
	LoginMaxAttempts int
	LoginWindow      time.Duration

	// Logging
	LogRetentionDays int
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "listening_circle"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		JWTSecret:        getEnv("JWT_SECRET", ""),
		JWTAccessExpiry:  parseDuration(getEnv("JWT_ACCESS_EXPIRY", "15m"), 15*time.Minute),
		JWTRefreshExpiry: parseDuration(getEnv("JWT_REFRESH_EXPIRY", "168h"), 168*time.Hour),
		MagicLinkExpiry:  parseDuration(getEnv("MAGIC_LINK_EXPIRY", "24h"), 24*time.Hour),

		AdminEmails: getEnv("ADMIN_EMAILS", ""),
		AdminToken:  getEnv("ADMIN_TOKEN", ""),

		Port:          getEnv("PORT", "8080"),
		CORSOrigins:   getEnv("CORS_ORIGINS", "*"),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		AppEnv:        getEnv("APP_ENV", "development"),

		TrustedProxies: parseList(getEnv("TRUSTED_PROXIES", "")),

		StorefrontURL:            getEnv("STOREFRONT_URL", "https://shop.lowtherloudspeakers.com"),
		WebflowFormSecret:        getEnv("WEBFLOW_FORM_SECRET", ""),
		AutoProvisionFromWebflow: getEnv("AUTO_PROVISION_FROM_WEBFLOW", "false") == "true",
		AttributionWindow:        time.Duration(parseInt(getEnv("ATTRIBUTION_WINDOW_DAYS", "30"), 30)) * 24 * time.Hour,
		DefaultCurrency:          strings.ToUpper(getEnv("DEFAULT_CURRENCY", "GBP")),
		UplineRate:               parseDecimal(getEnv("UPLINE_RATE", "0.05"), decimal.RequireFromString("0.05")),

		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         parseInt(getEnv("SMTP_PORT", "587"), 587),
		SMTPUser:         getEnv("SMTP_USER", ""),
		SMTPPass:         getEnv("SMTP_PASS", ""),
		EmailFrom:        getEnv("EMAIL_FROM", "circle@lowtherloudspeakers.com"),
		AdminNotifyEmail: getEnv("ADMIN_NOTIFY_EMAIL", ""),

		RedisURL:         getEnv("REDIS_URL", ""),
		LoginMaxAttempts: parseInt(getEnv("LOGIN_MAX_ATTEMPTS", "5"), 5),
		LoginWindow:      parseDuration(getEnv("LOGIN_WINDOW", "15m"), 15*time.Minute),

		LogRetentionDays: parseInt(getEnv("LOG_RETENTION_DAYS", "30"), 30),
	}
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// ReferralLink is the public URL members share.
func (c *Config) ReferralLink(code string) string {
	return c.PublicBaseURL + "/r/" + code
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func parseDecimal(s string, fallback decimal.Decimal) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil || v.IsNegative() {
		return fallback
	}
	return v
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
