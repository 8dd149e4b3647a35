package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseFile_JSON(t *testing.T) {
	path := writeTempFile(t, "cfg.json", `{
		"http_addr": "127.0.0.1:8081",
		"database_dsn": "postgres://u:p@db/lk",
		"secret_key": "k",
		"token_ttl": "2h",
		"otp_ttl": 60000000000,
		"notify_owners": true,
		"smtp_port": 2525,
		"auth_rate_limit": 0.5,
		"s3_bucket": "seed-images"
	}`)

	var got Config
	got.LoadDefaults()
	require.NoError(t, parseFile(&got, []string{"-config", path}))

	want := Config{}
	want.LoadDefaults()
	want.HTTPAddr = "127.0.0.1:8081"
	want.DatabaseDSN = "postgres://u:p@db/lk"
	want.SecretKey = "k"
	want.TokenTTL = 2 * time.Hour
	want.OTPTTL = time.Minute
	want.NotifyOwners = true
	want.SMTPPort = 2525
	want.AuthRateLimit = 0.5
	want.S3Bucket = "seed-images"

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestParseFile_YAMLKeepsUnsetFields(t *testing.T) {
	path := writeTempFile(t, "cfg.yml", "store: memory\nshutdown_timeout: 3s\n")

	var got Config
	got.LoadDefaults()
	require.NoError(t, parseFile(&got, []string{"-c", path}))

	assert.Equal(t, StoreMemory, got.Store)
	assert.Equal(t, 3*time.Second, got.ShutdownTimeout)
	assert.Equal(t, ":8080", got.HTTPAddr)
}

func TestParseFile_NoFlag(t *testing.T) {
	var got Config
	got.LoadDefaults()
	require.NoError(t, parseFile(&got, []string{"-a", ":1"}))
	assert.Equal(t, ":8080", got.HTTPAddr)
}

func TestParseFile_Errors(t *testing.T) {
	var c Config

	err := parseFile(&c, []string{"-c", filepath.Join(t.TempDir(), "missing.json")})
	assert.Error(t, err)

	bad := writeTempFile(t, "bad.json", "{not json")
	assert.Error(t, parseFile(&c, []string{"-c", bad}))

	badDur := writeTempFile(t, "dur.yaml", "token_ttl: soon\n")
	assert.Error(t, parseFile(&c, []string{"-c", badDur}))
}
