package config

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setSecrets(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_ACCESS_SECRET", "access-secret-0123456789")
	t.Setenv("JWT_REFRESH_SECRET", "refresh-secret-0123456789")
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaultsFromEnvOnly(t *testing.T) {
	setSecrets(t)
	t.Setenv("REDIS_HOST", "cache.internal")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_TLS", "true")

	s, err := Load(Options{})
	require.NoError(t, err)
	require.Equal(t, []byte("access-secret-0123456789"), s.Engine.JWT.AccessSecret)
	require.Equal(t, "cache.internal", s.Engine.Store.Host)
	require.Equal(t, 6380, s.Engine.Store.Port)
	require.True(t, s.Engine.Store.TLS)
	require.Equal(t, ":8080", s.HTTPAddr)
	require.True(t, s.Engine.RateLimit.Enabled)
}

func TestLoadMissingSecretIsFatal(t *testing.T) {
	t.Setenv("JWT_ACCESS_SECRET", "")
	t.Setenv("JWT_REFRESH_SECRET", "refresh-secret-0123456789")

	_, err := Load(Options{})
	require.ErrorContains(t, err, "JWT_ACCESS_SECRET")
}

func TestLoadYAMLThenEnvOverrides(t *testing.T) {
	setSecrets(t)
	t.Setenv("REDIS_HOST", "from-env")
	t.Setenv("SESSION_SECRET", "cookie-secret")

	path := writeFile(t, "config.yaml", `
server:
  addr: ":9090"
  trust_proxy: true
jwt:
  access_ttl: 10m
  refresh_ttl: 48h
store:
  host: from-yaml
  operation_timeout: 500ms
revocation:
  strategy: indexed
  exactly_once: true
rate_limit:
  max_attempts: 3
  window: 1m
session:
  enabled: true
  same_site: strict
users:
  seed: users.yaml
`)

	s, err := Load(Options{Path: path})
	require.NoError(t, err)
	require.Equal(t, ":9090", s.HTTPAddr)
	require.True(t, s.TrustProxy)
	require.Equal(t, 10*time.Minute, s.Engine.JWT.AccessTTL)
	require.Equal(t, 48*time.Hour, s.Engine.JWT.RefreshTTL)
	require.Equal(t, "from-env", s.Engine.Store.Host)
	require.Equal(t, 500*time.Millisecond, s.Engine.Store.OperationTimeout)
	require.Equal(t, "indexed", s.Engine.Revocation.Strategy)
	require.True(t, s.Engine.Revocation.ExactlyOnceRotation)
	require.Equal(t, 3, s.Engine.RateLimit.MaxAttempts)
	require.True(t, s.Engine.Session.Enabled)
	require.Equal(t, http.SameSiteStrictMode, s.Engine.Session.SameSite)
	require.Equal(t, "users.yaml", s.UserSeedPath)
}

func TestLoadEnvFileDoesNotOverrideEnvironment(t *testing.T) {
	t.Setenv("JWT_ACCESS_SECRET", "from-environment-0123")
	// Register restoration, then unset so the .env value can apply.
	t.Setenv("JWT_REFRESH_SECRET", "")
	require.NoError(t, os.Unsetenv("JWT_REFRESH_SECRET"))

	envFile := writeFile(t, ".env", "JWT_ACCESS_SECRET=from-file-access\nJWT_REFRESH_SECRET=from-file-refresh\n")

	s, err := Load(Options{EnvFile: envFile})
	require.NoError(t, err)
	require.Equal(t, []byte("from-environment-0123"), s.Engine.JWT.AccessSecret)
	require.Equal(t, []byte("from-file-refresh"), s.Engine.JWT.RefreshSecret)

	_, err = Load(Options{EnvFile: filepath.Join(t.TempDir(), "absent.env")})
	require.NoError(t, err)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	setSecrets(t)

	_, err := Load(Options{Path: writeFile(t, "bad.yaml", "session:\n  same_site: sideways\n")})
	require.ErrorContains(t, err, "same_site")

	_, err = Load(Options{Path: writeFile(t, "broken.yaml", "jwt: [")})
	require.Error(t, err)

	_, err = Load(Options{Path: filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)
}
