// Package sessions provides the session key builder and parser.
//
// Session keys follow the canonical format:
//
//	irc:{accountId}:{peerId}
//
// Where {peerId} is the channel name for group messages and the sender
// nick for direct messages, lower-cased so that case variants of the
// same conversation map to the same session across reconnects.
package sessions

import (
	"fmt"
	"strings"
)

// PeerKind distinguishes DM from channel conversations.
type PeerKind string

const (
	PeerDirect PeerKind = "direct"
	PeerGroup  PeerKind = "group"
)

// BuildSessionKey builds the canonical session key for a conversation.
//
//	DM:      irc:{accountId}:{senderNick}
//	Channel: irc:{accountId}:{channelName}
func BuildSessionKey(accountID, peerID string) string {
	return fmt.Sprintf("irc:%s:%s", accountID, strings.ToLower(peerID))
}

// ParseSessionKey extracts the accountID and peer from a canonical key.
// Returns ("", "") if the key is not in the expected format.
func ParseSessionKey(key string) (accountID, peer string) {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) < 3 || parts[0] != "irc" {
		return "", ""
	}
	return parts[1], parts[2]
}

// PeerKindFromTarget returns PeerGroup when the message target is a
// channel, PeerDirect otherwise.
func PeerKindFromTarget(isChannel bool) PeerKind {
	if isChannel {
		return PeerGroup
	}
	return PeerDirect
}
