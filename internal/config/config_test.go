package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("IDP_BASE_URL", "https://idp.test/auth")
	t.Setenv("IDP_REDIRECT_URI", "https://gateway.test/auth/callback")
	t.Setenv("SESSION_SECRET", "secret")
	t.Setenv("SESSION_STORE", "memory")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "met", cfg.Identity.Realm)
	assert.Equal(t, "met-web", cfg.Identity.ClientID)
	assert.Equal(t, time.Minute, cfg.Identity.RefreshInterval)
	assert.Equal(t, 5*time.Minute, cfg.Identity.MinValidity)
	assert.Equal(t, "met_session", cfg.Session.CookieName)
	assert.True(t, cfg.Session.CookieSecure)
	assert.Equal(t, 24*time.Hour, cfg.Session.Lifetime)
	assert.Equal(t, "en", cfg.Tenant.DefaultLanguage)
	assert.Equal(t, time.Hour, cfg.Tenant.CacheTTL)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("TENANT_DEFAULT_SLUG", "gdx")
	t.Setenv("SESSION_LIFETIME", "8h")
	t.Setenv("SESSION_COOKIE_SECURE", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "gdx", cfg.Tenant.DefaultSlug)
	assert.Equal(t, 8*time.Hour, cfg.Session.Lifetime)
	assert.False(t, cfg.Session.CookieSecure)
}

func TestValidate(t *testing.T) {
	setRequired(t)

	t.Run("missing idp base url", func(t *testing.T) {
		t.Setenv("IDP_BASE_URL", "")
		_, err := Load()
		assert.ErrorContains(t, err, "IDP_BASE_URL")
	})

	t.Run("missing session secret", func(t *testing.T) {
		t.Setenv("SESSION_SECRET", "")
		_, err := Load()
		assert.ErrorContains(t, err, "SESSION_SECRET")
	})

	t.Run("postgres store requires password", func(t *testing.T) {
		t.Setenv("SESSION_STORE", "postgres")
		t.Setenv("DB_PASSWORD", "")
		_, err := Load()
		assert.ErrorContains(t, err, "DB_PASSWORD")
	})
}
