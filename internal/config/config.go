// Package config defines the bridge configuration schema and loader.
// Config is loaded once at startup; AccountConfig values are read-only
// for the lifetime of the account's connection.
package config

// Config is the root configuration for the bridge process.
type Config struct {
	LogLevel  string                   `json:"log_level,omitempty"` // "debug", "info" (default), "warn", "error"
	Gateway   GatewayConfig            `json:"gateway"`
	Accounts  map[string]AccountConfig `json:"accounts"`
	RateLimit RateLimitConfig          `json:"rate_limit"`
	Reconnect ReconnectConfig          `json:"reconnect"`
}

// GatewayConfig points at the agent gateway the bridge forwards messages to.
type GatewayConfig struct {
	URL        string `json:"url"`                   // ws:// or wss:// endpoint
	Token      string `json:"token,omitempty"`       // bearer token for the WS handshake
	TimeoutSec int    `json:"timeout_sec,omitempty"` // per-invocation timeout (default 120)
}

// AccountConfig is the immutable per-account IRC configuration.
type AccountConfig struct {
	Enabled bool `json:"enabled"`

	Server   string `json:"server"`
	Port     int    `json:"port,omitempty"` // default 6697 with TLS, 6667 without
	TLS      bool   `json:"tls"`
	Nick     string `json:"nick"`
	User     string `json:"user,omitempty"`      // defaults to nick
	RealName string `json:"real_name,omitempty"` // defaults to nick

	ServerPassword string     `json:"server_password,omitempty"`
	SASL           SASLConfig `json:"sasl,omitempty"`

	// Legacy NickServ IDENTIFY after registration. Deliberately requires the
	// explicit opt-in flag: a configured password without allow_plain_auth
	// is refused, never silently used.
	NickServPassword string `json:"nickserv_password,omitempty"`
	AllowPlainAuth   bool   `json:"allow_plain_auth,omitempty"`

	Channels     []string `json:"channels,omitempty"` // auto-join list, joined in order
	RejoinOnKick bool     `json:"rejoin_on_kick,omitempty"`

	DM     DMPolicyConfig    `json:"dm"`
	Groups GroupPolicyConfig `json:"groups"`

	MessageMaxLen int `json:"message_max_len,omitempty"` // outbound chunk limit (default 420)
	SendDelayMs   int `json:"send_delay_ms,omitempty"`   // inter-chunk flood delay (default 1000)
}

// SASLConfig carries SASL PLAIN credentials. When set, SASL is used
// exclusively and the legacy NickServ path is never attempted.
type SASLConfig struct {
	User     string `json:"user,omitempty"`
	Password string `json:"password,omitempty"`
}

// Configured reports whether usable SASL credentials are present.
func (s SASLConfig) Configured() bool {
	return s.User != "" && s.Password != ""
}

// DMPolicyConfig controls who may talk to the bot in private messages.
type DMPolicyConfig struct {
	Policy    string   `json:"policy,omitempty"` // "disabled", "open", "pairing"
	AllowFrom []string `json:"allow_from,omitempty"`
}

// GroupPolicyConfig controls which channels and senders the bot listens to.
type GroupPolicyConfig struct {
	Policy   string               `json:"policy,omitempty"` // "allowlist", "denylist", "all"
	PerGroup map[string]GroupRule `json:"per_group,omitempty"`
}

// GroupRule is the per-channel sender list for allowlist/denylist policies.
type GroupRule struct {
	Users []string `json:"users,omitempty"`
}

// RateLimitConfig bounds per-sender inbound message rates.
type RateLimitConfig struct {
	MaxMessages     int `json:"max_messages,omitempty"`      // per window (default 10)
	WindowMs        int `json:"window_ms,omitempty"`         // window duration (default 60000)
	SweepIntervalMs int `json:"sweep_interval_ms,omitempty"` // stale entry sweep (default 300000)
}

// ReconnectConfig controls the capped exponential backoff schedule.
type ReconnectConfig struct {
	InitialDelayMs int `json:"initial_delay_ms,omitempty"` // default 2000
	MaxDelayMs     int `json:"max_delay_ms,omitempty"`     // default 300000
	MaxAttempts    int `json:"max_attempts,omitempty"`     // default 10
}

// EffectivePort returns the configured port or the protocol default.
func (a AccountConfig) EffectivePort() int {
	if a.Port > 0 {
		return a.Port
	}
	if a.TLS {
		return 6697
	}
	return 6667
}

// EffectiveUser returns the username used for registration.
func (a AccountConfig) EffectiveUser() string {
	if a.User != "" {
		return a.User
	}
	return a.Nick
}

// EffectiveRealName returns the realname used for registration.
func (a AccountConfig) EffectiveRealName() string {
	if a.RealName != "" {
		return a.RealName
	}
	return a.Nick
}

// EffectiveMessageMaxLen returns the outbound chunk limit.
func (a AccountConfig) EffectiveMessageMaxLen() int {
	if a.MessageMaxLen > 0 {
		return a.MessageMaxLen
	}
	return 420
}

// EffectiveSendDelayMs returns the inter-chunk flood delay.
func (a AccountConfig) EffectiveSendDelayMs() int {
	if a.SendDelayMs > 0 {
		return a.SendDelayMs
	}
	return 1000
}
