package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// clearEnv blanks every WGC_ variable so ambient shell state cannot leak
// into assertions.
func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"WGC_LISTEN", "WGC_DATA_DIR", "WGC_WG_DIR", "WGC_JWT_SECRET",
		"WGC_ENCRYPTION_PASSPHRASE", "WGC_DEFAULT_ENDPOINT", "WGC_DEFAULT_DNS",
		"WGC_COMMAND_TIMEOUT", "WGC_LOG_LEVEL", "WGC_MOCK", "WGC_ALLOW_CUSTOM_SCRIPTS",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	cfg, err := Load([]string{"-data-dir", dir})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":8080" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.WGDir != "/etc/wireguard" {
		t.Errorf("WGDir = %q", cfg.WGDir)
	}
	if cfg.DefaultEndpoint != "vpn.example.com" || cfg.DefaultDNS != "1.1.1.1" {
		t.Errorf("defaults = %q, %q", cfg.DefaultEndpoint, cfg.DefaultDNS)
	}
	if cfg.CommandTimeout != 15*time.Second {
		t.Errorf("CommandTimeout = %v", cfg.CommandTimeout)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.Mock || cfg.AllowCustomScripts {
		t.Errorf("booleans not defaulted off: %+v", cfg)
	}
	if cfg.DatabasePath() != filepath.Join(dir, "wg-console.db") {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath())
	}
}

func TestLoadEnvironment(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("WGC_LISTEN", ":9090")
	t.Setenv("WGC_COMMAND_TIMEOUT", "30")
	t.Setenv("WGC_MOCK", "1")
	t.Setenv("WGC_LOG_LEVEL", "debug")
	t.Setenv("WGC_ALLOW_CUSTOM_SCRIPTS", "true")
	t.Setenv("WGC_DEFAULT_DNS", "9.9.9.9")

	cfg, err := Load([]string{"-data-dir", dir})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":9090" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.CommandTimeout != 30*time.Second {
		t.Errorf("CommandTimeout = %v", cfg.CommandTimeout)
	}
	if !cfg.Mock || !cfg.AllowCustomScripts {
		t.Errorf("booleans not picked up: %+v", cfg)
	}
	if cfg.LogLevel != "debug" || cfg.DefaultDNS != "9.9.9.9" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadFlagsBeatEnvironment(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("WGC_LISTEN", ":9090")

	cfg, err := Load([]string{"-data-dir", dir, "-listen", ":7070"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":7070" {
		t.Errorf("Listen = %q, want flag value", cfg.Listen)
	}
}

func TestLoadGeneratesAndPersistsSecrets(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	first, err := Load([]string{"-data-dir", dir})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(first.JWTSecret) == 0 || first.EncryptionPassphrase == "" {
		t.Fatalf("secrets not generated: %+v", first)
	}
	info, err := os.Stat(filepath.Join(dir, "secret.key"))
	if err != nil {
		t.Fatalf("stat secret file: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("secret file mode = %v", info.Mode().Perm())
	}

	second, err := Load([]string{"-data-dir", dir})
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if string(second.JWTSecret) != string(first.JWTSecret) {
		t.Error("jwt secret changed between runs")
	}
	if second.EncryptionPassphrase != first.EncryptionPassphrase {
		t.Error("passphrase changed between runs")
	}
}

func TestLoadSecretsFromEnvironment(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("WGC_JWT_SECRET", "env-jwt-secret")
	t.Setenv("WGC_ENCRYPTION_PASSPHRASE", "env-passphrase")

	cfg, err := Load([]string{"-data-dir", dir})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(cfg.JWTSecret) != "env-jwt-secret" || cfg.EncryptionPassphrase != "env-passphrase" {
		t.Errorf("env secrets not used: %+v", cfg)
	}
	if _, err := os.Stat(filepath.Join(dir, "secret.key")); !os.IsNotExist(err) {
		t.Error("secret file written despite env secret")
	}
}

func TestLoadRejectsZeroTimeout(t *testing.T) {
	clearEnv(t)
	t.Setenv("WGC_COMMAND_TIMEOUT", "0")
	if _, err := Load([]string{"-data-dir", t.TempDir()}); err == nil {
		t.Fatal("zero timeout accepted")
	}
}

func TestLoadIgnoresGarbageTimeout(t *testing.T) {
	clearEnv(t)
	t.Setenv("WGC_COMMAND_TIMEOUT", "soon")
	cfg, err := Load([]string{"-data-dir", t.TempDir()})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CommandTimeout != 15*time.Second {
		t.Errorf("CommandTimeout = %v, want default", cfg.CommandTimeout)
	}
}

func TestVersionFlagShortCircuits(t *testing.T) {
	clearEnv(t)
	cfg, err := Load([]string{"-version"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.ShowVersion {
		t.Error("ShowVersion not set")
	}
	if cfg.JWTSecret != nil {
		t.Error("secrets resolved for a version-only run")
	}
}
