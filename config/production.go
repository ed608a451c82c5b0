// Package config loads the service configuration from the environment
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Commission attribution policies for activations performed by administrators on unassigned tags
const (
	AdminFallbackCreditAdmin = "admin"
	AdminFallbackNone        = "none"
)

type ProductionConfig struct {
	Database   DatabaseConfig   `json:"database"`
	Server     ServerConfig     `json:"server"`
	Security   SecurityConfig   `json:"security"`
	JWT        JWTConfig        `json:"jwt"`
	SMS        SMSConfig        `json:"sms"`
	OTP        OTPConfig        `json:"otp"`
	Commission CommissionConfig `json:"commission"`
	Tags       TagsConfig       `json:"tags"`
	Captcha    CaptchaConfig    `json:"captcha"`
	Logging    LoggingConfig    `json:"logging"`
	Metrics    MetricsConfig    `json:"metrics"`
	Cache      CacheConfig      `json:"cache"`
	Scheduler  SchedulerConfig  `json:"scheduler"`
	Deployment DeploymentConfig `json:"deployment"`
}

type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	SlowQueryTime   time.Duration `json:"slow_query_time"`
	AutoMigrate     bool          `json:"auto_migrate"`
}

type ServerConfig struct {
	Host              string        `json:"host"`
	Port              int           `json:"port"`
	ReadTimeout       time.Duration `json:"read_timeout"`
	WriteTimeout      time.Duration `json:"write_timeout"`
	IdleTimeout       time.Duration `json:"idle_timeout"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout"`
	BodyLimit         int           `json:"body_limit"`
	TrustedProxies    []string      `json:"trusted_proxies"`
	ProxyHeader       string        `json:"proxy_header"`
	EnableCompression bool          `json:"enable_compression"`
}

type SecurityConfig struct {
	// CORS
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	CORSMaxAge       int      `json:"cors_max_age"`

	// Rate Limiting
	GlobalRateLimit int           `json:"global_rate_limit"` // requests per window
	OTPRateLimit    int           `json:"otp_rate_limit"`    // request-otp calls per window and IP
	RateLimitWindow time.Duration `json:"rate_limit_window"`

	// Secrets
	OTPPepper             string `json:"-"`
	OTPBcryptCost         int    `json:"otp_bcrypt_cost"`
	PhoneEncryptionSecret string `json:"-"`

	// Content Security
	XFrameOptions  string `json:"x_frame_options"`
	ReferrerPolicy string `json:"referrer_policy"`
}

type JWTConfig struct {
	SecretKey  string `json:"-"`
	PublicKey  string `json:"-"`            // RSA public key in PEM format
	UseRSAKeys bool   `json:"use_rsa_keys"` // Whether to verify with an RSA key instead of the shared secret
	Issuer     string `json:"issuer"`
	Audience   string `json:"audience"`
}

type SMSConfig struct {
	ProviderDomain string        `json:"provider_domain"` // "mock" logs instead of sending
	APIKey         string        `json:"-"`
	SourceNumber   string        `json:"source_number"`
	RetryCount     int           `json:"retry_count"`
	ValidityPeriod int           `json:"validity_period"`
	Timeout        time.Duration `json:"timeout"`
}

type OTPConfig struct {
	TTL            time.Duration `json:"ttl"`
	MaxAttempts    int           `json:"max_attempts"`
	ResendCooldown time.Duration `json:"resend_cooldown"`
	RequireCaptcha bool          `json:"require_captcha"`
}

type CommissionConfig struct {
	AdminFallback          string `json:"admin_fallback"` // admin | none
	DefaultTotalSaleAmount int64  `json:"default_total_sale_amount"`
	DefaultCostAmount      int64  `json:"default_cost_amount"`

	// CountManualCredits adds completed manual credits to the available balance
	CountManualCredits bool `json:"count_manual_credits"`
}

type TagsConfig struct {
	PublicBaseURL string `json:"public_base_url"`
	MaxBulkCount  int    `json:"max_bulk_count"`
	QRSizePx      int    `json:"qr_size_px"`
}

type CaptchaConfig struct {
	TTL       time.Duration `json:"ttl"`
	Padding   int           `json:"padding"`
	ImageSize int           `json:"image_size"`
}

type LoggingConfig struct {
	Output          string `json:"output"` // stdout, file, both
	FilePath        string `json:"file_path"`
	MaxSize         int    `json:"max_size"` // MB
	MaxBackups      int    `json:"max_backups"`
	MaxAge          int    `json:"max_age"` // days
	Compress        bool   `json:"compress"`
	EnableAccessLog bool   `json:"enable_access_log"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type CacheConfig struct {
	Enabled     bool   `json:"enabled"`
	RedisURL    string `json:"-"`
	RedisPrefix string `json:"redis_prefix"`
}

type SchedulerConfig struct {
	OTPReaperEnabled   bool          `json:"otp_reaper_enabled"`
	OTPReaperInterval  time.Duration `json:"otp_reaper_interval"`
	OTPReaperBatchSize int           `json:"otp_reaper_batch_size"`
}

type DeploymentConfig struct {
	Environment string `json:"environment"` // production, staging, development, test
	Version     string `json:"version"`
}

// IsProduction reports whether plaintext passcodes must be withheld from responses
func (c *ProductionConfig) IsProduction() bool {
	return strings.EqualFold(c.Deployment.Environment, "production")
}

// LoadProductionConfig loads and validates configuration from environment variables
func LoadProductionConfig() (*ProductionConfig, error) {
	// Load environment variables from .env file
	if err := loadEnvFile(".env"); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &ProductionConfig{
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "taptag"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "require"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
			SlowQueryTime:   getEnvDuration("DB_SLOW_QUERY_TIME", 1*time.Second),
			AutoMigrate:     getEnvBool("DB_AUTO_MIGRATE", false),
		},
		Server: ServerConfig{
			Host:              getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:              getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:       getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:      getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:       getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout:   getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			BodyLimit:         getEnvInt("SERVER_BODY_LIMIT", 4*1024*1024), // 4MB
			TrustedProxies:    getEnvStringSlice("SERVER_TRUSTED_PROXIES", []string{"127.0.0.1"}),
			ProxyHeader:       getEnvString("SERVER_PROXY_HEADER", "X-Real-IP"),
			EnableCompression: getEnvBool("SERVER_ENABLE_COMPRESSION", true),
		},
		Security: SecurityConfig{
			AllowedOrigins:        getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{"https://taptag.app", "https://admin.taptag.app"}),
			AllowedMethods:        getEnvStringSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PATCH", "OPTIONS"}),
			AllowedHeaders:        getEnvStringSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"}),
			AllowCredentials:      getEnvBool("CORS_ALLOW_CREDENTIALS", true),
			CORSMaxAge:            getEnvInt("CORS_MAX_AGE", 86400),
			GlobalRateLimit:       getEnvInt("GLOBAL_RATE_LIMIT", 1000),
			OTPRateLimit:          getEnvInt("OTP_RATE_LIMIT", 10),
			RateLimitWindow:       getEnvDuration("RATE_LIMIT_WINDOW", 1*time.Minute),
			OTPPepper:             getEnvString("OTP_PEPPER", ""),
			OTPBcryptCost:         getEnvInt("OTP_BCRYPT_COST", 10),
			PhoneEncryptionSecret: getEnvString("PHONE_ENCRYPTION_SECRET", ""),
			XFrameOptions:         getEnvString("X_FRAME_OPTIONS", "DENY"),
			ReferrerPolicy:        getEnvString("REFERRER_POLICY", "strict-origin-when-cross-origin"),
		},
		JWT: JWTConfig{
			SecretKey:  getEnvString("JWT_SECRET_KEY", ""),
			PublicKey:  getEnvString("JWT_PUBLIC_KEY", ""),
			UseRSAKeys: getEnvBool("JWT_USE_RSA_KEYS", false),
			Issuer:     getEnvString("JWT_ISSUER", "taptag"),
			Audience:   getEnvString("JWT_AUDIENCE", "taptag-api"),
		},
		SMS: SMSConfig{
			ProviderDomain: getEnvString("SMS_PROVIDER_DOMAIN", "mock"),
			APIKey:         getEnvString("SMS_API_KEY", ""),
			SourceNumber:   getEnvString("SMS_SOURCE_NUMBER", ""),
			RetryCount:     getEnvInt("SMS_RETRY_COUNT", 2),
			ValidityPeriod: getEnvInt("SMS_VALIDITY_PERIOD", 600),
			Timeout:        getEnvDuration("SMS_TIMEOUT", 10*time.Second),
		},
		OTP: OTPConfig{
			TTL:            getEnvDuration("OTP_TTL", 10*time.Minute),
			MaxAttempts:    getEnvInt("OTP_MAX_ATTEMPTS", 5),
			ResendCooldown: getEnvDuration("OTP_RESEND_COOLDOWN", 60*time.Second),
			RequireCaptcha: getEnvBool("OTP_REQUIRE_CAPTCHA", false),
		},
		Commission: CommissionConfig{
			AdminFallback:          getEnvString("COMMISSION_ADMIN_FALLBACK", AdminFallbackCreditAdmin),
			DefaultTotalSaleAmount: getEnvInt64("SALE_DEFAULT_TOTAL_AMOUNT", 29900),
			DefaultCostAmount:      getEnvInt64("SALE_DEFAULT_COST_AMOUNT", 12900),
			CountManualCredits:     getEnvBool("COMMISSION_COUNT_MANUAL_CREDITS", false),
		},
		Tags: TagsConfig{
			PublicBaseURL: getEnvString("PUBLIC_BASE_URL", "https://taptag.app"),
			MaxBulkCount:  getEnvInt("TAGS_MAX_BULK_COUNT", 500),
			QRSizePx:      getEnvInt("TAGS_QR_SIZE_PX", 512),
		},
		Captcha: CaptchaConfig{
			TTL:       getEnvDuration("CAPTCHA_TTL", 2*time.Minute),
			Padding:   getEnvInt("CAPTCHA_PADDING", 8),
			ImageSize: getEnvInt("CAPTCHA_IMAGE_SIZE", 220),
		},
		Logging: LoggingConfig{
			Output:          getEnvString("LOG_OUTPUT", "stdout"),
			FilePath:        getEnvString("LOG_FILE_PATH", "/var/log/taptag/app.log"),
			MaxSize:         getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups:      getEnvInt("LOG_MAX_BACKUPS", 10),
			MaxAge:          getEnvInt("LOG_MAX_AGE", 30),
			Compress:        getEnvBool("LOG_COMPRESS", true),
			EnableAccessLog: getEnvBool("LOG_ENABLE_ACCESS_LOG", true),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnvString("METRICS_PATH", "/metrics"),
		},
		Cache: CacheConfig{
			Enabled:     getEnvBool("CACHE_ENABLED", true),
			RedisURL:    getEnvString("REDIS_URL", "redis://localhost:6379/0"),
			RedisPrefix: getEnvString("REDIS_PREFIX", "taptag"),
		},
		Scheduler: SchedulerConfig{
			OTPReaperEnabled:   getEnvBool("OTP_REAPER_ENABLED", true),
			OTPReaperInterval:  getEnvDuration("OTP_REAPER_INTERVAL", 1*time.Minute),
			OTPReaperBatchSize: getEnvInt("OTP_REAPER_BATCH_SIZE", 1000),
		},
		Deployment: DeploymentConfig{
			Environment: getEnvString("APP_ENV", "production"),
			Version:     getEnvString("APP_VERSION", "dev"),
		},
	}

	// Validate the loaded configuration
	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFile loads environment variables from an env file if it exists
func loadEnvFile(envFile string) error {
	// Check if .env file exists
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		// .env file doesn't exist, continue with environment variables
		return nil
	}

	file, err := os.Open(envFile)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", envFile, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		// Remove quotes if present
		if len(value) >= 2 && ((strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`)) ||
			(strings.HasPrefix(value, `'`) && strings.HasSuffix(value, `'`))) {
			value = value[1 : len(value)-1]
		}

		// Real environment wins over the file
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading %s: %w", envFile, err)
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// ValidateProductionConfig validates the configuration and reports every problem at once
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errors []string

	// Validate database configuration
	if cfg.Database.Host == "" {
		errors = append(errors, "DB_HOST is required")
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		errors = append(errors, "DB_PORT must be between 1 and 65535")
	}
	if cfg.Database.Name == "" {
		errors = append(errors, "DB_NAME is required")
	}
	if cfg.Database.User == "" {
		errors = append(errors, "DB_USER is required")
	}

	// Validate server configuration
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}

	// Validate secrets
	if cfg.JWT.UseRSAKeys {
		if cfg.JWT.PublicKey == "" {
			errors = append(errors, "JWT_PUBLIC_KEY is required when JWT_USE_RSA_KEYS is true")
		}
	} else if len(cfg.JWT.SecretKey) < 32 {
		errors = append(errors, "JWT_SECRET_KEY must be at least 32 characters long")
	}
	if len(cfg.Security.OTPPepper) < 16 {
		errors = append(errors, "OTP_PEPPER must be at least 16 characters long")
	}
	if len(cfg.Security.PhoneEncryptionSecret) < 16 {
		errors = append(errors, "PHONE_ENCRYPTION_SECRET must be at least 16 characters long")
	}
	if cfg.Security.OTPBcryptCost < 4 || cfg.Security.OTPBcryptCost > 14 {
		errors = append(errors, "OTP_BCRYPT_COST must be between 4 and 14")
	}

	// Validate OTP configuration
	if cfg.OTP.TTL <= 0 {
		errors = append(errors, "OTP_TTL must be positive")
	}
	if cfg.OTP.MaxAttempts <= 0 {
		errors = append(errors, "OTP_MAX_ATTEMPTS must be positive")
	}
	if cfg.OTP.ResendCooldown < 0 {
		errors = append(errors, "OTP_RESEND_COOLDOWN must not be negative")
	}

	// Validate commission configuration
	switch cfg.Commission.AdminFallback {
	case AdminFallbackCreditAdmin, AdminFallbackNone:
	default:
		errors = append(errors, "COMMISSION_ADMIN_FALLBACK must be one of: admin, none")
	}
	if cfg.Commission.DefaultTotalSaleAmount < 0 {
		errors = append(errors, "SALE_DEFAULT_TOTAL_AMOUNT must not be negative")
	}
	if cfg.Commission.DefaultCostAmount < 0 || cfg.Commission.DefaultCostAmount > cfg.Commission.DefaultTotalSaleAmount {
		errors = append(errors, "SALE_DEFAULT_COST_AMOUNT must be between 0 and SALE_DEFAULT_TOTAL_AMOUNT")
	}

	// Validate tag configuration
	if !strings.HasPrefix(cfg.Tags.PublicBaseURL, "http://") && !strings.HasPrefix(cfg.Tags.PublicBaseURL, "https://") {
		errors = append(errors, "PUBLIC_BASE_URL must be an http(s) URL")
	}
	if cfg.Tags.MaxBulkCount <= 0 || cfg.Tags.MaxBulkCount > 500 {
		errors = append(errors, "TAGS_MAX_BULK_COUNT must be between 1 and 500")
	}

	// Validate SMS configuration if enabled
	if cfg.SMS.ProviderDomain != "mock" {
		if cfg.SMS.APIKey == "" {
			errors = append(errors, "SMS_API_KEY is required for SMS provider")
		}
		if cfg.SMS.SourceNumber == "" {
			errors = append(errors, "SMS_SOURCE_NUMBER is required for SMS provider")
		}
	}

	if cfg.OTP.RequireCaptcha && !cfg.Cache.Enabled {
		errors = append(errors, "OTP_REQUIRE_CAPTCHA needs CACHE_ENABLED for the captcha store")
	}

	if cfg.Scheduler.OTPReaperEnabled && cfg.Scheduler.OTPReaperInterval <= 0 {
		errors = append(errors, "OTP_REAPER_INTERVAL must be positive")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}
