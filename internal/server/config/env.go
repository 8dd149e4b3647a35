package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// envConfig lists the environment variables the server reads. Unset
// variables leave the current value alone. JWT_SECRET, EMAIL_USER and
// EMAIL_PASS are accepted for deployments that still carry the old
// dashboard's .env; the LK_ names win when both are set.
type envConfig struct {
	HTTPAddr        string        `env:"LK_HTTP_ADDR"`
	GRPCHealthAddr  string        `env:"LK_GRPC_HEALTH_ADDR"`
	ShutdownTimeout time.Duration `env:"LK_SHUTDOWN_TIMEOUT"`
	LogLevel        string        `env:"LK_LOG_LEVEL"`
	CORSOrigin      string        `env:"LK_CORS_ORIGIN"`

	Store       string `env:"LK_STORE"`
	DatabaseDSN string `env:"LK_DATABASE_DSN"`

	SecretKey  string        `env:"LK_SECRET_KEY"`
	TokenTTL   time.Duration `env:"LK_TOKEN_TTL"`
	BcryptCost int           `env:"LK_BCRYPT_COST"`

	OTPTTL         time.Duration `env:"LK_OTP_TTL"`
	OTPMaxAttempts int           `env:"LK_OTP_MAX_ATTEMPTS"`
	OTPWindow      time.Duration `env:"LK_OTP_WINDOW"`
	RedisAddr      string        `env:"LK_REDIS_ADDR"`
	RedisPassword  string        `env:"LK_REDIS_PASSWORD"`

	AuthRateLimit float64 `env:"LK_AUTH_RATE_LIMIT"`
	AuthRateBurst int     `env:"LK_AUTH_RATE_BURST"`

	Notifier     string `env:"LK_NOTIFIER"`
	NotifyOwners string `env:"LK_NOTIFY_OWNERS"`
	SMTPHost     string `env:"LK_SMTP_HOST"`
	SMTPPort     int    `env:"LK_SMTP_PORT"`
	SMTPUser     string `env:"LK_SMTP_USER"`
	SMTPPassword string `env:"LK_SMTP_PASSWORD"`
	SMTPFrom     string `env:"LK_SMTP_FROM"`

	S3Region     string        `env:"LK_S3_REGION"`
	S3AccessKey  string        `env:"LK_S3_ACCESS_KEY"`
	S3SecretKey  string        `env:"LK_S3_SECRET_KEY"`
	S3Endpoint   string        `env:"LK_S3_ENDPOINT"`
	S3Bucket     string        `env:"LK_S3_BUCKET"`
	S3PresignTTL time.Duration `env:"LK_S3_PRESIGN_TTL"`

	PurgeSchedule string `env:"LK_PURGE_SCHEDULE"`

	LegacyJWTSecret string `env:"JWT_SECRET"`
	LegacyEmailUser string `env:"EMAIL_USER"`
	LegacyEmailPass string `env:"EMAIL_PASS"`
}

// parseEnv loads dotenv (when the file exists) into the process
// environment without overriding variables that are already set, then
// overlays LK_* variables onto cfg.
func parseEnv(cfg *Config, dotenv string) error {
	if dotenv != "" {
		if _, err := os.Stat(dotenv); err == nil {
			if err := godotenv.Load(dotenv); err != nil {
				return fmt.Errorf("load %s: %w", dotenv, err)
			}
		}
	}

	e := &envConfig{}
	if err := envdecode.Decode(e); err != nil {
		if errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
			return nil
		}
		return fmt.Errorf("decode environment: %w", err)
	}

	return e.apply(cfg)
}

func str(dst *string, vals ...string) {
	for _, v := range vals {
		if v != "" {
			*dst = v
			return
		}
	}
}

func num(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func dur(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}

func (e *envConfig) apply(c *Config) error {
	str(&c.HTTPAddr, e.HTTPAddr)
	str(&c.GRPCHealthAddr, e.GRPCHealthAddr)
	dur(&c.ShutdownTimeout, e.ShutdownTimeout)
	str(&c.LogLevel, e.LogLevel)
	str(&c.CORSOrigin, e.CORSOrigin)

	str(&c.Store, e.Store)
	str(&c.DatabaseDSN, e.DatabaseDSN)

	str(&c.SecretKey, e.SecretKey, e.LegacyJWTSecret)
	dur(&c.TokenTTL, e.TokenTTL)
	num(&c.BcryptCost, e.BcryptCost)

	dur(&c.OTPTTL, e.OTPTTL)
	num(&c.OTPMaxAttempts, e.OTPMaxAttempts)
	dur(&c.OTPWindow, e.OTPWindow)
	str(&c.RedisAddr, e.RedisAddr)
	str(&c.RedisPassword, e.RedisPassword)

	if e.AuthRateLimit != 0 {
		c.AuthRateLimit = e.AuthRateLimit
	}
	num(&c.AuthRateBurst, e.AuthRateBurst)

	str(&c.Notifier, e.Notifier)
	if e.NotifyOwners != "" {
		v, err := strconv.ParseBool(e.NotifyOwners)
		if err != nil {
			return fmt.Errorf("LK_NOTIFY_OWNERS: %w", err)
		}
		c.NotifyOwners = v
	}
	str(&c.SMTPHost, e.SMTPHost)
	num(&c.SMTPPort, e.SMTPPort)
	str(&c.SMTPUser, e.SMTPUser, e.LegacyEmailUser)
	str(&c.SMTPPassword, e.SMTPPassword, e.LegacyEmailPass)
	str(&c.SMTPFrom, e.SMTPFrom)

	str(&c.S3Region, e.S3Region)
	str(&c.S3AccessKey, e.S3AccessKey)
	str(&c.S3SecretKey, e.S3SecretKey)
	str(&c.S3Endpoint, e.S3Endpoint)
	str(&c.S3Bucket, e.S3Bucket)
	dur(&c.S3PresignTTL, e.S3PresignTTL)

	str(&c.PurgeSchedule, e.PurgeSchedule)
	return nil
}
