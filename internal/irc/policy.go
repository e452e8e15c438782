package irc

import (
	"strings"

	"github.com/nextlevelbuilder/ircclaw/internal/config"
)

// DMPolicyKind enumerates the recognized DM policies.
type DMPolicyKind string

const (
	DMPolicyDisabled DMPolicyKind = "disabled"
	DMPolicyOpen     DMPolicyKind = "open"
	DMPolicyPairing  DMPolicyKind = "pairing"

	// DMPolicyInvalid marks an unrecognized config value. Always denies.
	DMPolicyInvalid DMPolicyKind = "invalid"
)

// GroupPolicyKind enumerates the recognized channel policies.
type GroupPolicyKind string

const (
	GroupPolicyAllowlist GroupPolicyKind = "allowlist"
	GroupPolicyDenylist  GroupPolicyKind = "denylist"
	GroupPolicyAll       GroupPolicyKind = "all"

	// GroupPolicyInvalid marks an unrecognized config value. Always denies.
	GroupPolicyInvalid GroupPolicyKind = "invalid"
)

// ParseDMPolicy maps a config string to a policy kind. An empty value
// resolves to disabled; an unrecognized one resolves to invalid, which
// denies unconditionally, so a typo can never widen access.
func ParseDMPolicy(s string) DMPolicyKind {
	switch kind := DMPolicyKind(strings.ToLower(strings.TrimSpace(s))); kind {
	case DMPolicyDisabled, DMPolicyOpen, DMPolicyPairing:
		return kind
	case "":
		return DMPolicyDisabled
	default:
		return DMPolicyInvalid
	}
}

// ParseGroupPolicy maps a config string to a policy kind. An empty
// value resolves to allowlist; an unrecognized one resolves to
// invalid, which denies unconditionally.
func ParseGroupPolicy(s string) GroupPolicyKind {
	switch kind := GroupPolicyKind(strings.ToLower(strings.TrimSpace(s))); kind {
	case GroupPolicyAllowlist, GroupPolicyDenylist, GroupPolicyAll:
		return kind
	case "":
		return GroupPolicyAllowlist
	default:
		return GroupPolicyInvalid
	}
}

// AuthDecision is the outcome of an authorization check. Reason is set
// only on denial and is meant for logs, never for replies to the peer.
type AuthDecision struct {
	Authorized bool
	Reason     string
}

// Authorize decides whether a message from senderID addressed to target
// may be forwarded to the agent. target is a channel name for group
// messages and the bot's own nick for DMs. Denials are silent toward
// the sender.
func Authorize(senderID, target string, cfg config.AccountConfig) AuthDecision {
	if IsChannelTarget(target) {
		return authorizeGroup(senderID, target, cfg.Groups)
	}
	return authorizeDM(senderID, cfg.DM)
}

func authorizeDM(senderID string, dm config.DMPolicyConfig) AuthDecision {
	switch ParseDMPolicy(dm.Policy) {
	case DMPolicyOpen:
		return AuthDecision{Authorized: true}
	case DMPolicyPairing:
		if matchUser(senderID, dm.AllowFrom) {
			return AuthDecision{Authorized: true}
		}
		return AuthDecision{Reason: "not paired"}
	case DMPolicyDisabled:
		return AuthDecision{Reason: "DMs are disabled"}
	default:
		return AuthDecision{Reason: "unrecognized policy"}
	}
}

func authorizeGroup(senderID, channel string, groups config.GroupPolicyConfig) AuthDecision {
	rule, ok := lookupGroup(channel, groups.PerGroup)

	switch ParseGroupPolicy(groups.Policy) {
	case GroupPolicyAll:
		return AuthDecision{Authorized: true}
	case GroupPolicyDenylist:
		if ok && matchUser(senderID, rule.Users) {
			return AuthDecision{Reason: "sender in denylist"}
		}
		return AuthDecision{Authorized: true}
	case GroupPolicyAllowlist:
		if !ok {
			return AuthDecision{Reason: "channel not configured"}
		}
		if matchUser(senderID, rule.Users) {
			return AuthDecision{Authorized: true}
		}
		return AuthDecision{Reason: "sender not in allowlist"}
	default:
		return AuthDecision{Reason: "unrecognized policy"}
	}
}

// lookupGroup finds the rule for a channel, case-insensitively, with a
// "*" key acting as a catch-all.
func lookupGroup(channel string, perGroup map[string]config.GroupRule) (config.GroupRule, bool) {
	want := strings.ToLower(channel)
	for name, rule := range perGroup {
		if strings.ToLower(name) == want {
			return rule, true
		}
	}
	if rule, ok := perGroup["*"]; ok {
		return rule, true
	}
	return config.GroupRule{}, false
}

// matchUser reports whether senderID appears in the list. Matching is
// case-insensitive and "*" matches any sender.
func matchUser(senderID string, users []string) bool {
	want := strings.ToLower(strings.TrimSpace(senderID))
	for _, u := range users {
		u = strings.ToLower(strings.TrimSpace(u))
		if u == "*" || u == want {
			return true
		}
	}
	return false
}
