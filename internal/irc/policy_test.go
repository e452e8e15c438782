package irc

import (
	"testing"

	"github.com/nextlevelbuilder/ircclaw/internal/config"
)

func TestAuthorizeDM(t *testing.T) {
	tests := []struct {
		name   string
		dm     config.DMPolicyConfig
		sender string
		want   bool
	}{
		{"default denies", config.DMPolicyConfig{}, "alice", false},
		{"disabled denies", config.DMPolicyConfig{Policy: "disabled"}, "alice", false},
		{"unknown policy denies", config.DMPolicyConfig{Policy: "yolo"}, "alice", false},
		{"unknown policy denies listed sender", config.DMPolicyConfig{Policy: "yolo", AllowFrom: []string{"alice"}}, "alice", false},
		{"open allows anyone", config.DMPolicyConfig{Policy: "open"}, "stranger", true},
		{"pairing allows listed", config.DMPolicyConfig{Policy: "pairing", AllowFrom: []string{"Alice"}}, "alice", true},
		{"pairing denies unlisted", config.DMPolicyConfig{Policy: "pairing", AllowFrom: []string{"alice"}}, "bob", false},
		{"pairing wildcard", config.DMPolicyConfig{Policy: "pairing", AllowFrom: []string{"*"}}, "anyone", true},
		{"pairing empty list denies", config.DMPolicyConfig{Policy: "pairing"}, "alice", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.AccountConfig{Nick: "claw", DM: tt.dm}
			got := Authorize(tt.sender, "claw", cfg)
			if got.Authorized != tt.want {
				t.Errorf("Authorize(%q) = %+v, want authorized=%v", tt.sender, got, tt.want)
			}
			if !got.Authorized && got.Reason == "" {
				t.Error("denial must carry a reason")
			}
		})
	}
}

func TestParsePolicyKinds(t *testing.T) {
	if got := ParseDMPolicy(" Open "); got != DMPolicyOpen {
		t.Errorf("ParseDMPolicy folds/trims: got %q", got)
	}
	if got := ParseDMPolicy(""); got != DMPolicyDisabled {
		t.Errorf("empty dm policy: got %q", got)
	}
	if got := ParseDMPolicy("bogus"); got != DMPolicyInvalid {
		t.Errorf("unknown dm policy: got %q", got)
	}
	if got := ParseGroupPolicy(""); got != GroupPolicyAllowlist {
		t.Errorf("empty group policy: got %q", got)
	}
	if got := ParseGroupPolicy("bogus"); got != GroupPolicyInvalid {
		t.Errorf("unknown group policy: got %q", got)
	}
}

func TestAuthorizeGroup(t *testing.T) {
	tests := []struct {
		name    string
		groups  config.GroupPolicyConfig
		sender  string
		channel string
		want    bool
	}{
		{"default allowlist unconfigured channel denies",
			config.GroupPolicyConfig{}, "alice", "#dev", false},
		{"allowlist listed sender allows",
			config.GroupPolicyConfig{Policy: "allowlist", PerGroup: map[string]config.GroupRule{
				"#dev": {Users: []string{"Alice"}},
			}}, "alice", "#dev", true},
		{"allowlist unlisted sender denies",
			config.GroupPolicyConfig{Policy: "allowlist", PerGroup: map[string]config.GroupRule{
				"#dev": {Users: []string{"alice"}},
			}}, "bob", "#dev", false},
		{"allowlist channel case-insensitive",
			config.GroupPolicyConfig{Policy: "allowlist", PerGroup: map[string]config.GroupRule{
				"#Dev": {Users: []string{"alice"}},
			}}, "alice", "#DEV", true},
		{"allowlist wildcard channel",
			config.GroupPolicyConfig{Policy: "allowlist", PerGroup: map[string]config.GroupRule{
				"*": {Users: []string{"alice"}},
			}}, "alice", "#anything", true},
		{"allowlist wildcard user",
			config.GroupPolicyConfig{Policy: "allowlist", PerGroup: map[string]config.GroupRule{
				"#dev": {Users: []string{"*"}},
			}}, "stranger", "#dev", true},
		{"denylist listed sender denies",
			config.GroupPolicyConfig{Policy: "denylist", PerGroup: map[string]config.GroupRule{
				"#dev": {Users: []string{"troll"}},
			}}, "troll", "#dev", false},
		{"denylist unlisted sender allows",
			config.GroupPolicyConfig{Policy: "denylist", PerGroup: map[string]config.GroupRule{
				"#dev": {Users: []string{"troll"}},
			}}, "alice", "#dev", true},
		{"denylist unconfigured channel allows",
			config.GroupPolicyConfig{Policy: "denylist"}, "alice", "#dev", true},
		{"all allows everyone",
			config.GroupPolicyConfig{Policy: "all"}, "anyone", "#anywhere", true},
		{"unknown policy denies",
			config.GroupPolicyConfig{Policy: "bogus"}, "alice", "#dev", false},
		{"unknown policy denies even a listed sender",
			config.GroupPolicyConfig{Policy: "bogus-policy", PerGroup: map[string]config.GroupRule{
				"#dev": {Users: []string{"alice"}},
			}}, "alice", "#dev", false},
		{"unknown policy denies even a wildcard rule",
			config.GroupPolicyConfig{Policy: "allowall", PerGroup: map[string]config.GroupRule{
				"*": {Users: []string{"*"}},
			}}, "alice", "#dev", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.AccountConfig{Nick: "claw", Groups: tt.groups}
			got := Authorize(tt.sender, tt.channel, cfg)
			if got.Authorized != tt.want {
				t.Errorf("Authorize(%q, %q) = %+v, want authorized=%v", tt.sender, tt.channel, got, tt.want)
			}
		})
	}
}
