package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mailauto.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
[server]
host = "0.0.0.0"
port = 4725
exec = "/opt/node/bin/appium"
start_timeout = "45s"
stop_grace = "5s"
extra_args = ["--relaxed-security"]

[device]
name = "Pixel 7"
platform_version = "14"
app_package = "com.google.android.gm"
app_activity = ".ConversationListActivityGmail"
no_reset = true

[credentials]
email = "user@example.com"
password = "hunter2"

[delays]
short = "1s"
medium = "3s"
long = "7s"

[log]
level = "debug"
dir = "/tmp/mailauto-logs"

[history]
dsn = "sqlite://:memory:"

[api]
listen = "127.0.0.1:9099"
base_path = "/control"
`)
	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", c.Server.Host)
	assert.Equal(t, 4725, c.Server.Port)
	assert.Equal(t, "/opt/node/bin/appium", c.Server.Exec)
	assert.Equal(t, 45*time.Second, c.Server.StartTimeout)
	assert.Equal(t, 5*time.Second, c.Server.StopGrace)
	assert.Equal(t, []string{"--relaxed-security"}, c.Server.ExtraArgs)

	assert.Equal(t, "Pixel 7", c.Device.Name)
	assert.True(t, c.Device.NoReset)
	assert.Equal(t, ".ConversationListActivityGmail", c.Device.AppActivity)

	assert.Equal(t, "user@example.com", c.Credentials.Email)
	assert.Equal(t, "hunter2", c.Credentials.Password)

	assert.Equal(t, time.Second, c.Delays.Short)
	assert.Equal(t, 3*time.Second, c.Delays.Medium)
	assert.Equal(t, 7*time.Second, c.Delays.Long)

	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, "/tmp/mailauto-logs", c.Log.Dir)
	assert.Equal(t, "sqlite://:memory:", c.History.DSN)
	assert.Equal(t, "127.0.0.1:9099", c.API.Listen)
	assert.Equal(t, "/control", c.API.BasePath)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
[device]
app_package = "com.google.android.gm"
`)
	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "localhost", c.Server.Host)
	assert.Equal(t, 4723, c.Server.Port)
	assert.Equal(t, "appium", c.Server.Exec)
	assert.Equal(t, "UiAutomator2", c.Device.AutomationName)
	assert.Equal(t, 2*time.Second, c.Delays.Short)
	assert.Equal(t, 10*time.Second, c.Delays.Long)
	assert.Equal(t, "/api", c.API.BasePath)
}

func TestEnvOverridesCredentials(t *testing.T) {
	t.Setenv(EnvEmail, "env@example.com")
	t.Setenv(EnvPassword, "env-secret")
	path := writeConfig(t, `
[credentials]
email = "file@example.com"
password = "file-secret"
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env@example.com", c.Credentials.Email)
	assert.Equal(t, "env-secret", c.Credentials.Password)
}

func TestValidateRejectsBadPort(t *testing.T) {
	path := writeConfig(t, `
[server]
port = 70000
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}

func TestEndpointAndOptions(t *testing.T) {
	c := Default()
	ep := c.Endpoint()
	assert.Equal(t, "localhost", ep.Host)
	assert.Equal(t, 4723, ep.Port)
	assert.Equal(t, "appium", c.ManagerOptions().Exec)
}

func TestCapabilities(t *testing.T) {
	c := Default()
	c.Device.PlatformVersion = "14"
	c.Device.AppActivity = ".GmailActivity"
	caps := c.Capabilities()
	assert.Equal(t, "Android", caps["platformName"])
	assert.Equal(t, "com.google.android.gm", caps["appium:appPackage"])
	assert.Equal(t, "14", caps["appium:platformVersion"])
	assert.Equal(t, ".GmailActivity", caps["appium:appActivity"])

	caps2 := Default().Capabilities()
	assert.NotContains(t, caps2, "appium:platformVersion")
	assert.NotContains(t, caps2, "appium:appActivity")
}
