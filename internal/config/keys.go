package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kDuration
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.host", typ: kString, env: "TYSITE_SERVER_HOST",
		apply:   func(cfg *Config, v any) { cfg.Server.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Host },
	},
	{
		key: "server.port", typ: kInt, env: "TYSITE_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.secure_cookies", typ: kBool, env: "TYSITE_SERVER_SECURE_COOKIES",
		apply:   func(cfg *Config, v any) { cfg.Server.SecureCookies = v.(bool) },
		extract: func(cfg Config) any { return cfg.Server.SecureCookies },
	},
	{
		key: "storage.data_dir", typ: kString, env: "TYSITE_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "TYSITE_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "consent.version", typ: kString, env: "TYSITE_CONSENT_VERSION",
		apply:   func(cfg *Config, v any) { cfg.Consent.Version = v.(string) },
		extract: func(cfg Config) any { return cfg.Consent.Version },
	},
	{
		key: "consent.expiry_months", typ: kInt, env: "TYSITE_CONSENT_EXPIRY_MONTHS",
		apply:   func(cfg *Config, v any) { cfg.Consent.ExpiryMonths = v.(int) },
		extract: func(cfg Config) any { return cfg.Consent.ExpiryMonths },
	},
	{
		key: "contact.mode", typ: kString, env: "TYSITE_CONTACT_MODE",
		apply:   func(cfg *Config, v any) { cfg.Contact.Mode = v.(string) },
		extract: func(cfg Config) any { return cfg.Contact.Mode },
	},
	{
		key: "contact.submit_delay", typ: kDuration, env: "TYSITE_CONTACT_SUBMIT_DELAY",
		apply:   func(cfg *Config, v any) { cfg.Contact.SubmitDelay = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Contact.SubmitDelay },
	},
	{
		key: "contact.submit_timeout", typ: kDuration, env: "TYSITE_CONTACT_SUBMIT_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Contact.SubmitTimeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Contact.SubmitTimeout },
	},
	{
		key: "contact.webhook_url", typ: kString, env: "TYSITE_CONTACT_WEBHOOK_URL",
		apply:   func(cfg *Config, v any) { cfg.Contact.WebhookURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Contact.WebhookURL },
	},
	{
		key: "site.url", typ: kString, env: "TYSITE_SITE_URL",
		apply:   func(cfg *Config, v any) { cfg.Site.URL = v.(string) },
		extract: func(cfg Config) any { return cfg.Site.URL },
	},
	{
		key: "site.content_file", typ: kString, env: "TYSITE_SITE_CONTENT_FILE",
		apply:   func(cfg *Config, v any) { cfg.Site.ContentFile = v.(string) },
		extract: func(cfg Config) any { return cfg.Site.ContentFile },
	},
	{
		key: "admin.token", typ: kString, env: "TYSITE_ADMIN_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Admin.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Admin.Token },
	},
}

// parseValue converts a raw string for a key of type t.
func parseValue(t keyType, raw string) (any, error) {
	switch t {
	case kInt:
		return strconv.Atoi(raw)
	case kBool:
		return strconv.ParseBool(raw)
	case kDuration:
		return time.ParseDuration(raw)
	default:
		return raw, nil
	}
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool, kDuration:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if pv, err := parseValue(s.typ, v); err == nil {
					s.apply(cfg, pv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		v, err := parseValue(s.typ, raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}
