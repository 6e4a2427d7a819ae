package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"store_url": "http://store.internal:5000",
		"refresh_interval": "2s",
		"listen_addr": ":9000",
		"verify_tokens": false
	}`), 0600))

	opts := Default()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	opts.BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"-c", path, "--store", "http://flag:5000"}))

	t.Setenv("SERVER_ADDRESS", ":7000")
	t.Setenv("SESSION_TTL", "30m")

	require.NoError(t, opts.Load())

	// file overrides flags, env overrides file
	assert.Equal(t, "http://store.internal:5000", opts.StoreURL)
	assert.Equal(t, ":7000", opts.ListenAddr)
	assert.Equal(t, Duration(2*time.Second), opts.RefreshInterval)
	assert.Equal(t, Duration(30*time.Minute), opts.SessionTTL)
	assert.False(t, opts.VerifyTokens)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	opts := Default()
	opts.Config = filepath.Join(t.TempDir(), "absent.json")

	require.NoError(t, opts.Load())
	assert.Equal(t, "http://localhost:5000", opts.StoreURL)
	assert.Equal(t, Duration(5*time.Second), opts.RefreshInterval)
	assert.True(t, opts.VerifyTokens)
}

func TestLoad_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"refresh_interval": "soon"}`), 0600))

	opts := Default()
	opts.Config = path
	assert.Error(t, opts.Load())
}

func TestLoad_BadEnvDuration(t *testing.T) {
	opts := Default()
	opts.Config = ""
	t.Setenv("ROLE_REFRESH_INTERVAL", "often")
	assert.Error(t, opts.Load())
}
