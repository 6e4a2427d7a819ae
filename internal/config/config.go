// Package config provides functionality for managing configuration options
// for the portal server and the terminal client using command-line flags,
// a JSON config file, .env files and environment variables.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Duration is a time.Duration that reads Go duration strings ("5s") from JSON.
type Duration time.Duration

// UnmarshalJSON accepts "1m30s" style strings or integer nanoseconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*d = Duration(v)
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("duration must be a string or integer: %w", err)
	}
	*d = Duration(n)
	return nil
}

// Options holds the configuration values for the application.
type Options struct {
	// ListenAddr defines the portal server's listening address (ip:port).
	ListenAddr string `json:"listen_addr"`

	// DatabaseDSN holds the Postgres connection string for portal sessions.
	DatabaseDSN string `json:"database_dsn"`

	// Config is the path to the JSON config file.
	Config string `json:"-"`

	// StoreURL is the base URL of the remote REST store.
	StoreURL string `json:"store_url"`

	// StoreCA is an optional CA bundle used to trust the store over TLS.
	StoreCA string `json:"store_ca"`

	// FirebaseAPIKey is the web API key of the identity project.
	FirebaseAPIKey string `json:"firebase_api_key"`

	// FirebaseProjectID is the identity project id (token audience).
	FirebaseProjectID string `json:"firebase_project_id"`

	// IdentityURL is the Identity Toolkit base URL (emulator friendly).
	IdentityURL string `json:"identity_url"`

	// TokenURL is the Secure Token base URL (emulator friendly).
	TokenURL string `json:"token_url"`

	// VerifyTokens enables signature verification of identity tokens.
	VerifyTokens bool `json:"verify_tokens"`

	// RefreshInterval is the role refresh poll period.
	RefreshInterval Duration `json:"refresh_interval"`

	// SessionTTL bounds the lifetime of a portal session.
	SessionTTL Duration `json:"session_ttl"`

	// CleanupInterval is how often expired sessions are purged.
	CleanupInterval Duration `json:"cleanup_interval"`

	// SessionSecret keys the sealing of refresh tokens at rest.
	SessionSecret string `json:"session_secret"`

	// PermissionsFile optionally replaces the embedded route permission table.
	PermissionsFile string `json:"permissions_file"`

	// TLSCert and TLSKey enable HTTPS on the portal when both are set.
	TLSCert string `json:"tls_cert"`
	TLSKey  string `json:"tls_key"`

	// SessionFile is where the terminal client remembers its sign-in.
	SessionFile string `json:"session_file"`

	// LogLevel is the zap level name.
	LogLevel string `json:"log_level"`
}

// Default returns Options populated with defaults.
func Default() *Options {
	return &Options{
		ListenAddr:      "localhost:8080",
		Config:          "config.json",
		StoreURL:        "http://localhost:5000",
		IdentityURL:     "https://identitytoolkit.googleapis.com",
		TokenURL:        "https://securetoken.googleapis.com",
		VerifyTokens:    true,
		RefreshInterval: Duration(5 * time.Second),
		SessionTTL:      Duration(12 * time.Hour),
		CleanupInterval: Duration(time.Hour),
		SessionFile:     ".staffonic/session.json",
		LogLevel:        "info",
	}
}

// BindFlags registers the options on fs, using the current values as defaults.
func (o *Options) BindFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.ListenAddr, "addr", "a", o.ListenAddr, "run on ip:port server")
	fs.StringVarP(&o.DatabaseDSN, "dsn", "d", o.DatabaseDSN, "db address")
	fs.StringVarP(&o.Config, "config", "c", o.Config, "path to config file")
	fs.StringVar(&o.StoreURL, "store", o.StoreURL, "remote store base URL")
	fs.StringVar(&o.StoreCA, "store-ca", o.StoreCA, "CA bundle for the remote store")
	fs.StringVar(&o.FirebaseAPIKey, "api-key", o.FirebaseAPIKey, "identity provider API key")
	fs.StringVar(&o.FirebaseProjectID, "project", o.FirebaseProjectID, "identity provider project id")
	fs.StringVar(&o.LogLevel, "log-level", o.LogLevel, "log level")
	fs.StringVar(&o.SessionFile, "session-file", o.SessionFile, "where the client remembers its sign-in")
	fs.DurationVar((*time.Duration)(&o.RefreshInterval), "refresh", time.Duration(o.RefreshInterval), "role refresh interval")
}

// Load applies, in order: .env files, the JSON config file and environment
// variables on top of the flag values already stored in o.
func (o *Options) Load() error {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	if configPath := os.Getenv("CONFIG"); configPath != "" {
		o.Config = configPath
	}

	if o.Config != "" {
		data, err := os.ReadFile(o.Config)
		switch {
		case err == nil:
			if err := json.Unmarshal(data, o); err != nil {
				return fmt.Errorf("error while parsing config file: %w", err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return fmt.Errorf("error while reading config file: %w", err)
		}
	}

	return o.applyEnv()
}

func (o *Options) applyEnv() error {
	str := map[string]*string{
		"SERVER_ADDRESS":      &o.ListenAddr,
		"DATABASE_DSN":        &o.DatabaseDSN,
		"STORE_URL":           &o.StoreURL,
		"STORE_CA":            &o.StoreCA,
		"FIREBASE_API_KEY":    &o.FirebaseAPIKey,
		"FIREBASE_PROJECT_ID": &o.FirebaseProjectID,
		"IDENTITY_URL":        &o.IdentityURL,
		"TOKEN_URL":           &o.TokenURL,
		"SESSION_SECRET":      &o.SessionSecret,
		"PERMISSIONS_FILE":    &o.PermissionsFile,
		"TLS_CERT":            &o.TLSCert,
		"TLS_KEY":             &o.TLSKey,
		"SESSION_FILE":        &o.SessionFile,
		"LOG_LEVEL":           &o.LogLevel,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	dur := map[string]*Duration{
		"ROLE_REFRESH_INTERVAL": &o.RefreshInterval,
		"SESSION_TTL":           &o.SessionTTL,
		"CLEANUP_INTERVAL":      &o.CleanupInterval,
	}
	for key, dst := range dur {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = Duration(d)
		}
	}

	if v := os.Getenv("VERIFY_TOKENS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("VERIFY_TOKENS: %w", err)
		}
		o.VerifyTokens = b
	}
	return nil
}
