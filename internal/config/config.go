package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Log     LogConfig
	Consent ConsentConfig
	Contact ContactConfig
	Site    SiteConfig
	Admin   AdminConfig
}

type ServerConfig struct {
	Host          string
	Port          int
	SecureCookies bool
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

// SlogLevel maps Level to a slog.Level. Unknown names fall back to info.
func (l LogConfig) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

type ConsentConfig struct {
	Version      string
	ExpiryMonths int
}

// Contact delivery modes.
const (
	ContactModeQueue    = "queue"
	ContactModeSimulate = "simulate"
)

type ContactConfig struct {
	Mode          string
	SubmitDelay   time.Duration
	SubmitTimeout time.Duration
	WebhookURL    string
}

type SiteConfig struct {
	URL         string
	ContentFile string
}

type AdminConfig struct {
	Token string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
		Consent: ConsentConfig{
			Version:      "1.0",
			ExpiryMonths: 13,
		},
		Contact: ContactConfig{
			Mode:          ContactModeQueue,
			SubmitDelay:   1500 * time.Millisecond,
			SubmitTimeout: 10 * time.Second,
		},
		Site: SiteConfig{
			URL: "https://ty-dienstleistung.de",
		},
	}
}

// Load reads configuration from the platform-native backend, a .env file in
// the working directory, environment variables, and the platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.tysite.app) and secrets
// fall back to macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/tysite/config.json
// and secrets fall back to $XDG_DATA_HOME/tysite/secrets.json.
//
// Environment variables (TYSITE_*) override backend values on all platforms.
// Variables already set in the environment win over the .env file.
func Load() (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}
	return loadWith(newPlatformBackend(), platformSecrets{})
}

func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("loading %s: %w", path, err)
}

// secretStore abstracts Keychain access for testing.
type secretStore interface {
	Get(service, account string) (string, error)
}

const secretService = "tysite"

func loadWith(b ConfigBackend, secrets secretStore) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	// Try the platform secret store for secrets still empty.
	for _, s := range specs {
		if !s.secret || s.extract(cfg) != "" {
			continue
		}
		if v, err := secrets.Get(secretService, secretAccount(s.key)); err == nil && v != "" {
			s.apply(&cfg, v)
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Contact.Mode {
	case ContactModeQueue, ContactModeSimulate:
	default:
		return fmt.Errorf("invalid contact.mode %q: want %q or %q", c.Contact.Mode, ContactModeQueue, ContactModeSimulate)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.Consent.ExpiryMonths <= 0 {
		return fmt.Errorf("invalid consent.expiry_months %d: must be positive", c.Consent.ExpiryMonths)
	}
	if strings.TrimSpace(c.Consent.Version) == "" {
		return fmt.Errorf("consent.version must not be empty")
	}
	return nil
}

// secretAccount maps "admin.token" to the account name "admin_token".
func secretAccount(key string) string {
	return strings.ReplaceAll(key, ".", "_")
}

// platformSecrets reads from the platform secret store.
type platformSecrets struct{}

func (platformSecrets) Get(service, account string) (string, error) {
	out, err := secretGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// SetSecret stores a secret key (such as admin.token) in the platform secret store.
func SetSecret(key, value string) error {
	for _, s := range specs {
		if s.key == key {
			if !s.secret {
				return fmt.Errorf("%q is not a secret; use config set", key)
			}
			return secretSet(secretService, secretAccount(key), value)
		}
	}
	return fmt.Errorf("unknown config key: %q", key)
}
