package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, ":8080", c.HTTPAddr)
	assert.Equal(t, ":50051", c.GRPCHealthAddr)
	assert.Equal(t, StorePostgres, c.Store)
	assert.Equal(t, "secretKey", c.SecretKey)
	assert.Equal(t, time.Hour, c.TokenTTL)
	assert.Equal(t, 10, c.BcryptCost)
	assert.Equal(t, 5*time.Minute, c.OTPTTL)
	assert.Equal(t, 5, c.OTPMaxAttempts)
	assert.Equal(t, NotifierLog, c.Notifier)
	assert.False(t, c.NotifyOwners)
	assert.Equal(t, "smtp.gmail.com", c.SMTPHost)
	assert.Equal(t, 587, c.SMTPPort)
	assert.Equal(t, 15*time.Minute, c.S3PresignTTL)
	assert.Equal(t, "@every 10m", c.PurgeSchedule)
	require.NoError(t, c.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"memory without dsn", func(c *Config) { c.Store = StoreMemory; c.DatabaseDSN = "" }, true},
		{"postgres without dsn", func(c *Config) { c.DatabaseDSN = "" }, false},
		{"unknown store", func(c *Config) { c.Store = "mongo" }, false},
		{"unknown notifier", func(c *Config) { c.Notifier = "sms" }, false},
		{"smtp without host", func(c *Config) { c.Notifier = NotifierSMTP; c.SMTPHost = "" }, false},
		{"empty secret", func(c *Config) { c.SecretKey = "" }, false},
		{"zero otp ttl", func(c *Config) { c.OTPTTL = 0 }, false},
		{"no http addr", func(c *Config) { c.HTTPAddr = "" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Config
			c.LoadDefaults()
			tt.mutate(&c)
			if tt.ok {
				assert.NoError(t, c.Validate())
			} else {
				assert.Error(t, c.Validate())
			}
		})
	}
}

func TestLoadConfig_Layering(t *testing.T) {
	chdir(t, t.TempDir())

	path := writeTempFile(t, "cfg.yaml", `
http_addr: ":9000"
token_ttl: 30m
otp_ttl: 90s
store: memory
`)
	t.Setenv("LK_HTTP_ADDR", ":9100")
	t.Setenv("LK_SECRET_KEY", "from-env")

	cfg, err := LoadConfig([]string{"-c", path, "-a", ":9200"})
	require.NoError(t, err)

	assert.Equal(t, ":9200", cfg.HTTPAddr, "flag beats env and file")
	assert.Equal(t, "from-env", cfg.SecretKey, "env beats defaults")
	assert.Equal(t, 30*time.Minute, cfg.TokenTTL, "file beats defaults")
	assert.Equal(t, 90*time.Second, cfg.OTPTTL, "sub-minute value survives flag parsing")
	assert.Equal(t, StoreMemory, cfg.Store)
}

func TestLoadConfig_InvalidIsError(t *testing.T) {
	chdir(t, t.TempDir())

	_, err := LoadConfig([]string{"-m", "mongo"})
	assert.Error(t, err)
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir on older toolchains).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
