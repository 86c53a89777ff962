package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Gateway  GatewayConfig
	Auth     AuthConfig
	Resend   ResendConfig
}

type ServerConfig struct {
	Address        string
	LogLevel       string
	CORSOrigins    []string
	UploadMaxBytes int64
}

type DatabaseConfig struct {
	PostgresURL string
}

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

type GatewayConfig struct {
	URL        string
	BalanceURL string
	APIKey     string
	SenderID   string
	DryRun     bool
	Timeout    time.Duration
}

type AuthConfig struct {
	JWTSecret     string
	TokenTTL      time.Duration
	AdminEmail    string
	AdminPassword string
}

// ResendConfig drives the auto-resend sweep; the sweep itself is started from
// the admin API.
type ResendConfig struct {
	Interval  time.Duration
	BatchSize int
}

const (
	defaultGatewayURL = "http://bulksmsbd.net/api/smsapi"
	defaultBalanceURL = "https://api.sms.net.bd/user/balance/"
	defaultSenderID   = "8809617624071"
)

// LoadAll reads the whole configuration from the environment. Every missing
// or malformed key is reported in the returned error.
func LoadAll() (*Config, error) {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	postgresURL, err := requireEnv("POSTGRES_URL")
	collect(err)
	jwtSecret, err := requireEnv("JWT_SECRET")
	collect(err)

	gatewayTimeout, err := getEnvInt("SMS_TIMEOUT_SECONDS", 30)
	collect(err)
	tokenTTL, err := getEnvInt("JWT_TTL_MINUTES", 30)
	collect(err)
	resendInterval, err := getEnvInt("RESEND_INTERVAL_SECONDS", 600)
	collect(err)
	resendBatch, err := getEnvInt("RESEND_BATCH_SIZE", 20)
	collect(err)
	uploadMax, err := getEnvInt("UPLOAD_MAX_BYTES", 10<<20)
	collect(err)

	redisCfg, err := loadRedisConfig()
	collect(err)

	cfg := &Config{
		Server: ServerConfig{
			Address:        getEnv("SERVER_ADDRESS", ":8000"),
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			CORSOrigins:    splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
			UploadMaxBytes: int64(uploadMax),
		},
		Database: DatabaseConfig{
			PostgresURL: postgresURL,
		},
		Gateway: GatewayConfig{
			URL:        getEnv("SMS_API_URL", defaultGatewayURL),
			BalanceURL: getEnv("SMS_BALANCE_URL", defaultBalanceURL),
			APIKey:     os.Getenv("SMS_API_KEY"),
			SenderID:   getEnv("SMS_SENDER_ID", defaultSenderID),
			DryRun:     parseFlag(os.Getenv("SMS_DRY_RUN")),
			Timeout:    time.Duration(gatewayTimeout) * time.Second,
		},
		Auth: AuthConfig{
			JWTSecret:     jwtSecret,
			TokenTTL:      time.Duration(tokenTTL) * time.Minute,
			AdminEmail:    os.Getenv("ADMIN_EMAIL"),
			AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		},
		Resend: ResendConfig{
			Interval:  time.Duration(resendInterval) * time.Second,
			BatchSize: resendBatch,
		},
		Redis: redisCfg,
	}

	if len(errs) == 0 {
		errs = append(errs, validate(cfg)...)
	}
	if err := joinErrors(errs); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadRedisConfig() (RedisConfig, error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return RedisConfig{Enabled: false}, nil
	}

	db, dbErr := getEnvInt("REDIS_DB", 0)
	ttl, ttlErr := getEnvInt("REDIS_TTL_SECONDS", 86400)

	return RedisConfig{
		Enabled:  true,
		Address:  addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
		TTL:      time.Duration(ttl) * time.Second,
	}, errors.Join(dbErr, ttlErr)
}

func validate(cfg *Config) []error {
	var errs []error
	if cfg.Gateway.Timeout <= 0 {
		errs = append(errs, errors.New("SMS_TIMEOUT_SECONDS must be > 0"))
	}
	if cfg.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("JWT_TTL_MINUTES must be > 0"))
	}
	if cfg.Resend.Interval <= 0 {
		errs = append(errs, errors.New("RESEND_INTERVAL_SECONDS must be > 0"))
	}
	if cfg.Resend.BatchSize <= 0 {
		errs = append(errs, errors.New("RESEND_BATCH_SIZE must be > 0"))
	}
	if cfg.Server.UploadMaxBytes <= 0 {
		errs = append(errs, errors.New("UPLOAD_MAX_BYTES must be > 0"))
	}
	if (cfg.Auth.AdminEmail == "") != (cfg.Auth.AdminPassword == "") {
		errs = append(errs, errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set together"))
	}
	return errs
}

func requireEnv(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("missing required env var: %s", key)
	}
	return val, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def, fmt.Errorf("invalid int for env %s: %q", key, v)
	}
	return i, nil
}

// parseFlag accepts 1, true and yes in any case.
func parseFlag(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
