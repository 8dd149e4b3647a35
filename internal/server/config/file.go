package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xxiimcha/lk-web/internal/flagx"
	"github.com/xxiimcha/lk-web/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of the config. Every field is optional;
// only the fields present in the file override the current values.
// Durations accept "5m" style strings or integer nanoseconds.
type FileConfig struct {
	HTTPAddr        *string         `json:"http_addr" yaml:"http_addr"`
	GRPCHealthAddr  *string         `json:"grpc_health_addr" yaml:"grpc_health_addr"`
	ShutdownTimeout *timex.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel        *string         `json:"log_level" yaml:"log_level"`
	CORSOrigin      *string         `json:"cors_origin" yaml:"cors_origin"`

	Store       *string `json:"store" yaml:"store"`
	DatabaseDSN *string `json:"database_dsn" yaml:"database_dsn"`

	SecretKey  *string         `json:"secret_key" yaml:"secret_key"`
	TokenTTL   *timex.Duration `json:"token_ttl" yaml:"token_ttl"`
	BcryptCost *int            `json:"bcrypt_cost" yaml:"bcrypt_cost"`

	OTPTTL         *timex.Duration `json:"otp_ttl" yaml:"otp_ttl"`
	OTPMaxAttempts *int            `json:"otp_max_attempts" yaml:"otp_max_attempts"`
	OTPWindow      *timex.Duration `json:"otp_window" yaml:"otp_window"`
	RedisAddr      *string         `json:"redis_addr" yaml:"redis_addr"`
	RedisPassword  *string         `json:"redis_password" yaml:"redis_password"`

	AuthRateLimit *float64 `json:"auth_rate_limit" yaml:"auth_rate_limit"`
	AuthRateBurst *int     `json:"auth_rate_burst" yaml:"auth_rate_burst"`

	Notifier     *string `json:"notifier" yaml:"notifier"`
	NotifyOwners *bool   `json:"notify_owners" yaml:"notify_owners"`
	SMTPHost     *string `json:"smtp_host" yaml:"smtp_host"`
	SMTPPort     *int    `json:"smtp_port" yaml:"smtp_port"`
	SMTPUser     *string `json:"smtp_user" yaml:"smtp_user"`
	SMTPPassword *string `json:"smtp_password" yaml:"smtp_password"`
	SMTPFrom     *string `json:"smtp_from" yaml:"smtp_from"`

	S3Region     *string         `json:"s3_region" yaml:"s3_region"`
	S3AccessKey  *string         `json:"s3_access_key" yaml:"s3_access_key"`
	S3SecretKey  *string         `json:"s3_secret_key" yaml:"s3_secret_key"`
	S3Endpoint   *string         `json:"s3_endpoint" yaml:"s3_endpoint"`
	S3Bucket     *string         `json:"s3_bucket" yaml:"s3_bucket"`
	S3PresignTTL *timex.Duration `json:"s3_presign_ttl" yaml:"s3_presign_ttl"`

	PurgeSchedule *string `json:"purge_schedule" yaml:"purge_schedule"`
}

// parseFile loads the file named by -c/-config, if any. Files ending in
// .yaml or .yml are read as YAML, everything else as JSON.
func parseFile(cfg *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	fc := &FileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, fc)
	default:
		err = json.Unmarshal(data, fc)
	}
	if err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	fc.apply(cfg)
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *timex.Duration) {
	if src != nil {
		*dst = src.Duration
	}
}

func (fc *FileConfig) apply(c *Config) {
	setString(&c.HTTPAddr, fc.HTTPAddr)
	setString(&c.GRPCHealthAddr, fc.GRPCHealthAddr)
	setDuration(&c.ShutdownTimeout, fc.ShutdownTimeout)
	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.CORSOrigin, fc.CORSOrigin)

	setString(&c.Store, fc.Store)
	setString(&c.DatabaseDSN, fc.DatabaseDSN)

	setString(&c.SecretKey, fc.SecretKey)
	setDuration(&c.TokenTTL, fc.TokenTTL)
	setInt(&c.BcryptCost, fc.BcryptCost)

	setDuration(&c.OTPTTL, fc.OTPTTL)
	setInt(&c.OTPMaxAttempts, fc.OTPMaxAttempts)
	setDuration(&c.OTPWindow, fc.OTPWindow)
	setString(&c.RedisAddr, fc.RedisAddr)
	setString(&c.RedisPassword, fc.RedisPassword)

	if fc.AuthRateLimit != nil {
		c.AuthRateLimit = *fc.AuthRateLimit
	}
	setInt(&c.AuthRateBurst, fc.AuthRateBurst)

	setString(&c.Notifier, fc.Notifier)
	if fc.NotifyOwners != nil {
		c.NotifyOwners = *fc.NotifyOwners
	}
	setString(&c.SMTPHost, fc.SMTPHost)
	setInt(&c.SMTPPort, fc.SMTPPort)
	setString(&c.SMTPUser, fc.SMTPUser)
	setString(&c.SMTPPassword, fc.SMTPPassword)
	setString(&c.SMTPFrom, fc.SMTPFrom)

	setString(&c.S3Region, fc.S3Region)
	setString(&c.S3AccessKey, fc.S3AccessKey)
	setString(&c.S3SecretKey, fc.S3SecretKey)
	setString(&c.S3Endpoint, fc.S3Endpoint)
	setString(&c.S3Bucket, fc.S3Bucket)
	setDuration(&c.S3PresignTTL, fc.S3PresignTTL)

	setString(&c.PurgeSchedule, fc.PurgeSchedule)
}
