package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/networkteam/sessionkit/config"
)

func TestLoadSettings_Defaults(t *testing.T) {
	for _, key := range []string{"COOKIE_DIR", "TARGET_USER", "AUTH_MODE", "TEST_HEADLESS", "BASE_URL", "TEST_SUBDOMAINS"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	settings, err := config.LoadSettings("")
	require.NoError(t, err)
	assert.Equal(t, "cookies", settings.CookieDir)
	assert.Equal(t, "admin", settings.TargetUser)
	assert.Equal(t, config.AuthModeAPI, settings.AuthMode)
	assert.True(t, settings.Headless)
	assert.Equal(t, []string{"https://bll.by"}, settings.Sites())
}

func TestLoadSettings_Env(t *testing.T) {
	t.Setenv("AUTH_MODE", "Browser")
	t.Setenv("TEST_HEADLESS", "false")
	t.Setenv("TEST_SUBDOMAINS", "https://expert.bll.by,https://bll.by")
	t.Setenv("BASE_URL", "https://bll.by")

	settings, err := config.LoadSettings("")
	require.NoError(t, err)
	assert.Equal(t, config.AuthModeBrowser, settings.AuthMode)
	assert.False(t, settings.Headless)
	assert.Equal(t, []string{"https://bll.by", "https://expert.bll.by"}, settings.Sites())
}

func TestLoadSettings_InvalidMode(t *testing.T) {
	t.Setenv("AUTH_MODE", "carrier-pigeon")

	_, err := config.LoadSettings("")
	assert.Error(t, err)
}

func TestLoadSettings_DotEnv(t *testing.T) {
	t.Setenv("COOKIE_DIR", "")
	os.Unsetenv("COOKIE_DIR")
	t.Setenv("TARGET_USER", "from-env")

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("COOKIE_DIR=/tmp/dotenv-cookies\nTARGET_USER=from-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("COOKIE_DIR") })

	settings, err := config.LoadSettings(envFile)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/dotenv-cookies", settings.CookieDir)
	assert.Equal(t, "from-env", settings.TargetUser, "existing variables win over .env")
}
