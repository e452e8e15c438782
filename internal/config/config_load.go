package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Gateway: GatewayConfig{
			URL:        "ws://127.0.0.1:18790/ws",
			TimeoutSec: 120,
		},
		Accounts: map[string]AccountConfig{},
		RateLimit: RateLimitConfig{
			MaxMessages:     10,
			WindowMs:        60000,
			SweepIntervalMs: 300000,
		},
		Reconnect: ReconnectConfig{
			InitialDelayMs: 2000,
			MaxDelayMs:     300000,
			MaxAttempts:    10,
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
//
// Per-account secrets use the account id upper-cased with non-alphanumeric
// characters mapped to underscores, e.g. IRCCLAW_SASL_PASSWORD_LIBERA.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envStr("IRCCLAW_GATEWAY_URL", &c.Gateway.URL)
	envStr("IRCCLAW_GATEWAY_TOKEN", &c.Gateway.Token)
	envStr("IRCCLAW_LOG_LEVEL", &c.LogLevel)

	for id, acct := range c.Accounts {
		suffix := envSuffix(id)
		if v := os.Getenv("IRCCLAW_SASL_PASSWORD_" + suffix); v != "" {
			acct.SASL.Password = v
		}
		if v := os.Getenv("IRCCLAW_NICKSERV_PASSWORD_" + suffix); v != "" {
			acct.NickServPassword = v
		}
		if v := os.Getenv("IRCCLAW_SERVER_PASSWORD_" + suffix); v != "" {
			acct.ServerPassword = v
		}
		c.Accounts[id] = acct
	}
}

func envSuffix(accountID string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(accountID) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

const secretMask = "***"

// MaskedCopy returns a deep copy of the config with all secret fields
// masked. Used anywhere config is printed or exposed.
func (c *Config) MaskedCopy() *Config {
	data, err := json.Marshal(c)
	if err != nil {
		return &Config{}
	}
	cp := Default()
	if err := json.Unmarshal(data, cp); err != nil {
		return &Config{}
	}

	maskNonEmpty(&cp.Gateway.Token)
	for id, acct := range cp.Accounts {
		maskNonEmpty(&acct.SASL.Password)
		maskNonEmpty(&acct.NickServPassword)
		maskNonEmpty(&acct.ServerPassword)
		cp.Accounts[id] = acct
	}
	return cp
}

func maskNonEmpty(s *string) {
	if *s != "" {
		*s = secretMask
	}
}
