// Package config resolves the runtime configuration from flags, environment
// variables, an optional .env file, and built-in defaults, in that order of
// precedence.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// DefaultListen is the HTTP listen address when nothing else is set.
	DefaultListen = ":8080"
	// DefaultDataDir holds the database and generated secrets.
	DefaultDataDir = "/var/lib/wg-console"
	// DefaultWGDir is where the interface config files live.
	DefaultWGDir = "/etc/wireguard"

	defaultEndpoint       = "vpn.example.com"
	defaultDNS            = "1.1.1.1"
	defaultCommandTimeout = 15 * time.Second

	jwtSecretFile  = "secret.key"
	passphraseFile = "passphrase.key"
)

// Config is the resolved runtime configuration.
type Config struct {
	Listen               string
	DataDir              string
	WGDir                string
	JWTSecret            []byte
	EncryptionPassphrase string
	DefaultEndpoint      string
	DefaultDNS           string
	CommandTimeout       time.Duration
	LogLevel             string
	Mock                 bool
	AllowCustomScripts   bool
	ShowVersion          bool
}

// Load resolves the configuration from args and the process environment.
// Secrets missing from the environment are generated once and persisted
// under the data directory so restarts keep sessions and sealed keys valid.
func Load(args []string) (*Config, error) {
	loadDotEnv()

	timeoutSeconds := envInt("WGC_COMMAND_TIMEOUT", int(defaultCommandTimeout/time.Second))

	fs := flag.NewFlagSet("wgconsole", flag.ContinueOnError)
	listen := fs.String("listen", envString("WGC_LISTEN", DefaultListen), "HTTP listen address")
	dataDir := fs.String("data-dir", envString("WGC_DATA_DIR", DefaultDataDir), "directory for database and generated secrets")
	wgDir := fs.String("wg-dir", envString("WGC_WG_DIR", DefaultWGDir), "directory with WireGuard config files")
	mock := fs.Bool("mock", envBool("WGC_MOCK", false), "use the in-memory backend instead of wg/wg-quick")
	showVersion := fs.Bool("version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := &Config{
		Listen:               *listen,
		DataDir:              *dataDir,
		WGDir:                *wgDir,
		EncryptionPassphrase: os.Getenv("WGC_ENCRYPTION_PASSPHRASE"),
		DefaultEndpoint:      envString("WGC_DEFAULT_ENDPOINT", defaultEndpoint),
		DefaultDNS:           envString("WGC_DEFAULT_DNS", defaultDNS),
		CommandTimeout:       time.Duration(timeoutSeconds) * time.Second,
		LogLevel:             envString("WGC_LOG_LEVEL", "info"),
		Mock:                 *mock,
		AllowCustomScripts:   envBool("WGC_ALLOW_CUSTOM_SCRIPTS", false),
		ShowVersion:          *showVersion,
	}
	if cfg.ShowVersion {
		return cfg, nil
	}
	if cfg.CommandTimeout <= 0 {
		return nil, fmt.Errorf("command timeout must be positive, got %d", timeoutSeconds)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	secret := os.Getenv("WGC_JWT_SECRET")
	if secret == "" {
		generated, err := loadOrCreateSecret(filepath.Join(cfg.DataDir, jwtSecretFile))
		if err != nil {
			return nil, fmt.Errorf("jwt secret: %w", err)
		}
		secret = generated
	}
	cfg.JWTSecret = []byte(secret)
	if cfg.EncryptionPassphrase == "" {
		generated, err := loadOrCreateSecret(filepath.Join(cfg.DataDir, passphraseFile))
		if err != nil {
			return nil, fmt.Errorf("encryption passphrase: %w", err)
		}
		cfg.EncryptionPassphrase = generated
	}
	return cfg, nil
}

// DatabasePath is the SQLite file under the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "wg-console.db")
}

// loadDotEnv loads .env.local then .env when present. godotenv never
// overwrites variables that are already set, so the process environment wins
// over .env.local, which wins over .env.
func loadDotEnv() {
	for _, name := range []string{".env.local", ".env"} {
		if _, err := os.Stat(name); err == nil {
			_ = godotenv.Load(name)
		}
	}
}

func envString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return b
}

// loadOrCreateSecret reads the persisted secret, generating and writing a
// fresh one on first run.
func loadOrCreateSecret(path string) (string, error) {
	if data, err := os.ReadFile(path); err == nil {
		if secret := strings.TrimSpace(string(data)); secret != "" {
			return secret, nil
		}
	}
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	secret := hex.EncodeToString(raw)
	if err := os.WriteFile(path, []byte(secret+"\n"), 0o600); err != nil {
		return "", err
	}
	return secret, nil
}
