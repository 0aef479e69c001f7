package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tinbox.conf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestConfigDefaults(t *testing.T) {
	cfg, err := checkAndParseConfig("")
	require.NoError(t, err)

	assert.Equal(t, "", cfg.MOTD)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.WriteWait)
	assert.Equal(t, "", cfg.MetricsListen)
}

func TestConfigFile(t *testing.T) {
	path := writeConfig(t, `
# greeting
motd = welcome to tinbox
log-level = debug
log-format = console
write-wait = 2s
metrics-listen = 127.0.0.1:9100
`)

	cfg, err := checkAndParseConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "welcome to tinbox", cfg.MOTD)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, 2*time.Second, cfg.WriteWait)
	assert.Equal(t, "127.0.0.1:9100", cfg.MetricsListen)
}

func TestConfigPartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "motd = hi\n")

	cfg, err := checkAndParseConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "hi", cfg.MOTD)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.WriteWait)
}

func TestConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown key", "listen-port = 6667\n"},
		{"bad log level", "log-level = loud\n"},
		{"bad log format", "log-format = xml\n"},
		{"bad duration", "write-wait = soon\n"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			path := writeConfig(t, test.content)

			_, err := checkAndParseConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestConfigMissingFile(t *testing.T) {
	_, err := checkAndParseConfig(filepath.Join(t.TempDir(), "nope.conf"))
	assert.Error(t, err)
}
