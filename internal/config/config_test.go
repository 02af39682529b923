package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// mapBackend is an in-memory ConfigBackend.
type mapBackend struct {
	data map[string]any
}

func newMapBackend(kv map[string]any) *mapBackend {
	if kv == nil {
		kv = map[string]any{}
	}
	return &mapBackend{data: kv}
}

func (m *mapBackend) GetString(key string) (string, bool, error) {
	v, ok := m.data[key]
	if !ok {
		return "", false, nil
	}
	s, _ := v.(string)
	return s, true, nil
}

func (m *mapBackend) GetInt(key string) (int, bool, error) {
	v, ok := m.data[key]
	if !ok {
		return 0, false, nil
	}
	i, ok := v.(int)
	if !ok {
		return 0, true, errors.New("not an int")
	}
	return i, true, nil
}

func (m *mapBackend) SetString(key, val string) error { m.data[key] = val; return nil }
func (m *mapBackend) SetInt(key string, val int) error { m.data[key] = val; return nil }
func (m *mapBackend) Delete(key string) error          { delete(m.data, key); return nil }

// mockSecrets is a test double for the secret store.
type mockSecrets struct {
	value string
	err   error
}

func (m mockSecrets) Get(service, account string) (string, error) {
	return m.value, m.err
}

var noSecrets = mockSecrets{err: errors.New("not found")}

// clearEnv blanks every TYSITE_* variable for the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
}

// TestDefaults verifies all default values are applied with an empty backend.
func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := loadWith(newMapBackend(nil), noSecrets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Consent.Version != "1.0" {
		t.Errorf("Consent.Version = %q, want %q", cfg.Consent.Version, "1.0")
	}
	if cfg.Consent.ExpiryMonths != 13 {
		t.Errorf("Consent.ExpiryMonths = %d, want 13", cfg.Consent.ExpiryMonths)
	}
	if cfg.Contact.Mode != ContactModeQueue {
		t.Errorf("Contact.Mode = %q, want %q", cfg.Contact.Mode, ContactModeQueue)
	}
	if cfg.Contact.SubmitDelay != 1500*time.Millisecond {
		t.Errorf("Contact.SubmitDelay = %v, want 1.5s", cfg.Contact.SubmitDelay)
	}
	if cfg.Contact.SubmitTimeout != 10*time.Second {
		t.Errorf("Contact.SubmitTimeout = %v, want 10s", cfg.Contact.SubmitTimeout)
	}
	if cfg.Site.URL != "https://ty-dienstleistung.de" {
		t.Errorf("Site.URL = %q", cfg.Site.URL)
	}
	if cfg.Admin.Token != "" {
		t.Errorf("Admin.Token = %q, want empty", cfg.Admin.Token)
	}
	if cfg.Log.SlogLevel() != slog.LevelInfo {
		t.Errorf("Log.SlogLevel() = %v, want info", cfg.Log.SlogLevel())
	}
}

// TestBackendValues verifies that all key types are read from the backend.
func TestBackendValues(t *testing.T) {
	clearEnv(t)

	b := newMapBackend(map[string]any{
		"server.port":            9000,
		"server.secure_cookies":  "true",
		"storage.data_dir":       "/tmp/tysite-test",
		"log.level":              "debug",
		"consent.version":        "2.0",
		"consent.expiry_months":  6,
		"contact.mode":           "simulate",
		"contact.submit_delay":   "250ms",
		"contact.submit_timeout": "3s",
		"contact.webhook_url":    "https://hooks.example/inquiry",
		"site.url":               "https://staging.example",
	})

	cfg, err := loadWith(b, noSecrets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if !cfg.Server.SecureCookies {
		t.Error("Server.SecureCookies = false, want true")
	}
	if cfg.Storage.DataDir != "/tmp/tysite-test" {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
	if cfg.Log.SlogLevel() != slog.LevelDebug {
		t.Errorf("Log.SlogLevel() = %v, want debug", cfg.Log.SlogLevel())
	}
	if cfg.Consent.Version != "2.0" || cfg.Consent.ExpiryMonths != 6 {
		t.Errorf("Consent = %+v", cfg.Consent)
	}
	if cfg.Contact.Mode != ContactModeSimulate {
		t.Errorf("Contact.Mode = %q", cfg.Contact.Mode)
	}
	if cfg.Contact.SubmitDelay != 250*time.Millisecond || cfg.Contact.SubmitTimeout != 3*time.Second {
		t.Errorf("Contact durations = %v / %v", cfg.Contact.SubmitDelay, cfg.Contact.SubmitTimeout)
	}
	if cfg.Contact.WebhookURL != "https://hooks.example/inquiry" {
		t.Errorf("Contact.WebhookURL = %q", cfg.Contact.WebhookURL)
	}
	if cfg.Site.URL != "https://staging.example" {
		t.Errorf("Site.URL = %q", cfg.Site.URL)
	}
}

// TestEnvOverride verifies that environment variables override backend values.
func TestEnvOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("TYSITE_SERVER_PORT", "7000")
	t.Setenv("TYSITE_CONTACT_SUBMIT_DELAY", "2s")
	t.Setenv("TYSITE_ADMIN_TOKEN", "env-token")

	cfg, err := loadWith(newMapBackend(map[string]any{"server.port": 9000}), mockSecrets{value: "stored-token"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 7000 {
		t.Errorf("Server.Port = %d, want 7000", cfg.Server.Port)
	}
	if cfg.Contact.SubmitDelay != 2*time.Second {
		t.Errorf("Contact.SubmitDelay = %v, want 2s", cfg.Contact.SubmitDelay)
	}
	if cfg.Admin.Token != "env-token" {
		t.Errorf("Admin.Token = %q, want %q", cfg.Admin.Token, "env-token")
	}
}

// TestInvalidEnvKeepsDefault verifies unparsable env values are ignored.
func TestInvalidEnvKeepsDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("TYSITE_SERVER_PORT", "eighty")
	t.Setenv("TYSITE_CONTACT_SUBMIT_TIMEOUT", "soon")

	cfg, err := loadWith(newMapBackend(nil), noSecrets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want default 8080", cfg.Server.Port)
	}
	if cfg.Contact.SubmitTimeout != 10*time.Second {
		t.Errorf("Contact.SubmitTimeout = %v, want default 10s", cfg.Contact.SubmitTimeout)
	}
}

// TestSecretFallback verifies the secret store is consulted when the env var is empty.
func TestSecretFallback(t *testing.T) {
	clearEnv(t)

	cfg, err := loadWith(newMapBackend(nil), mockSecrets{value: "keychain-secret"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Admin.Token != "keychain-secret" {
		t.Errorf("Admin.Token = %q, want %q", cfg.Admin.Token, "keychain-secret")
	}
}

// TestSecretsNotReadFromBackend verifies a secret in the plain config store is ignored.
func TestSecretsNotReadFromBackend(t *testing.T) {
	clearEnv(t)

	cfg, err := loadWith(newMapBackend(map[string]any{"admin.token": "leaked"}), noSecrets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Admin.Token != "" {
		t.Errorf("Admin.Token = %q, want empty", cfg.Admin.Token)
	}
}

func TestValidate(t *testing.T) {
	tests := map[string]map[string]any{
		"bad mode":      {"contact.mode": "carrier-pigeon"},
		"zero expiry":   {"consent.expiry_months": 0},
		"port too high": {"server.port": 70000},
		"empty version": {"consent.version": " "},
	}
	for name, kv := range tests {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			if _, err := loadWith(newMapBackend(kv), noSecrets); err == nil {
				t.Fatal("expected validation error, got nil")
			}
		})
	}
}

func TestSetKey(t *testing.T) {
	b := newMapBackend(nil)

	if err := setKey(b, "server.port", "9090"); err != nil {
		t.Fatalf("setKey server.port: %v", err)
	}
	if b.data["server.port"] != 9090 {
		t.Errorf("server.port stored as %#v", b.data["server.port"])
	}
	if err := setKey(b, "contact.submit_delay", "2s"); err != nil {
		t.Fatalf("setKey contact.submit_delay: %v", err)
	}
	if b.data["contact.submit_delay"] != "2s" {
		t.Errorf("contact.submit_delay stored as %#v", b.data["contact.submit_delay"])
	}

	if err := setKey(b, "server.port", "abc"); err == nil {
		t.Error("expected error for non-integer port")
	}
	if err := setKey(b, "server.secure_cookies", "maybe"); err == nil {
		t.Error("expected error for non-bool value")
	}
	if err := setKey(b, "admin.token", "x"); err == nil || !strings.Contains(err.Error(), "secret") {
		t.Errorf("setKey admin.token error = %v, want secret refusal", err)
	}
	if err := setKey(b, "nope", "x"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestShowAllMasksSecrets(t *testing.T) {
	cfg := defaults()
	cfg.Admin.Token = "s3cret"

	for _, k := range ShowAll(cfg) {
		if k.Key == "admin.token" {
			if k.Value == "s3cret" {
				t.Error("admin.token shown in clear text")
			}
			return
		}
	}
	t.Error("admin.token missing from ShowAll")
}

func TestValidKeysExcludesSecrets(t *testing.T) {
	for _, k := range ValidKeys() {
		if k == "admin.token" {
			t.Error("ValidKeys lists admin.token")
		}
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("TYSITE_SERVER_PORT=6060\nTYSITE_LOG_LEVEL=warn\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	// Already-set variables win over the file.
	t.Setenv("TYSITE_LOG_LEVEL", "error")

	// godotenv treats empty-but-set variables as set; unset the port first.
	os.Unsetenv("TYSITE_SERVER_PORT")
	t.Cleanup(func() { os.Unsetenv("TYSITE_SERVER_PORT") })

	if err := loadDotEnv(path); err != nil {
		t.Fatalf("loadDotEnv: %v", err)
	}
	cfg, err := loadWith(newMapBackend(nil), noSecrets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 6060 {
		t.Errorf("Server.Port = %d, want 6060", cfg.Server.Port)
	}
	if cfg.Log.Level != "error" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "error")
	}

	if err := loadDotEnv(filepath.Join(dir, "missing.env")); err != nil {
		t.Errorf("missing .env should be ignored, got %v", err)
	}
}
