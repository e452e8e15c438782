// Package irc implements the policy and lifecycle layered on top of the
// IRC wire protocol: connection management with reconnect backoff,
// inbound sanitization/authorization/rate limiting, and chunked paced
// outbound delivery. The wire protocol itself is handled by girc.
package irc

import (
	"strings"

	"github.com/lrstanley/girc"
)

const (
	// ctcpDelim wraps out-of-band control messages embedded in PRIVMSG text.
	ctcpDelim = '\x01'

	// ctcpAction is the emote marker ("/me waves").
	ctcpAction = "ACTION"

	// maxContentLen is the protocol-level sanity bound on inbound text.
	// Not the outbound chunk limit; a single wire line can carry far
	// less, but relays and bouncers occasionally glue lines together.
	maxContentLen = 4096

	maxNickLen    = 16
	maxChannelLen = 50
)

// Sanitized is the result of running raw message text through Sanitize.
type Sanitized struct {
	Text      string // formatting-stripped text; empty for non-emote CTCP
	OutOfBand bool   // text was a CTCP control message
	Command   string // CTCP command token, upper-cased ("ACTION", "VERSION", ...)
	Emote     bool   // OutOfBand and the command is the emote marker
}

// Sanitize strips mIRC formatting/color codes and control bytes, and
// detects CTCP control messages. An ACTION payload becomes the clean
// text with Emote set; any other CTCP command yields empty text (the
// caller must drop it) while still reporting the command for logging.
func Sanitize(raw string) Sanitized {
	if len(raw) > 0 && raw[0] == ctcpDelim {
		body := strings.TrimSuffix(raw[1:], string(ctcpDelim))
		cmd, payload, _ := strings.Cut(body, " ")
		cmd = strings.ToUpper(strings.TrimSpace(cmd))
		if cmd == ctcpAction {
			return Sanitized{
				Text:      stripFormatting(payload),
				OutOfBand: true,
				Command:   ctcpAction,
				Emote:     true,
			}
		}
		return Sanitized{OutOfBand: true, Command: cmd}
	}
	return Sanitized{Text: stripFormatting(raw)}
}

// stripFormatting removes color/formatting sequences via girc, then any
// remaining control bytes.
func stripFormatting(s string) string {
	s = girc.StripRaw(s)
	if !strings.ContainsFunc(s, isControl) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if !isControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isControl(r rune) bool {
	return r < 0x20 && r != '\t'
}

// IsValidContent reports whether inbound text is worth processing:
// non-empty after trimming, within the sanity bound, and free of null
// bytes.
func IsValidContent(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	if len(text) > maxContentLen {
		return false
	}
	return !strings.ContainsRune(text, 0)
}

// Mention is the result of ExtractMention.
type Mention struct {
	Mentioned bool
	CleanText string
}

// ExtractMention detects whether text addresses the given nick, either
// as a leading "@nick" / "nick:" / "nick," prefix or as an "@nick"
// token anywhere, case-insensitively. All matched occurrences are
// stripped and the remaining whitespace collapsed. Text free of the
// nick comes back unchanged apart from whitespace collapse.
func ExtractMention(text, nick string) Mention {
	tokens := strings.Fields(text)
	if nick == "" {
		return Mention{CleanText: strings.Join(tokens, " ")}
	}

	lower := strings.ToLower(nick)
	mentioned := false
	kept := tokens[:0]
	for i, tok := range tokens {
		lt := strings.ToLower(tok)
		if i == 0 && (lt == lower+":" || lt == lower+",") {
			mentioned = true
			continue
		}
		if strings.TrimRight(lt, ",:") == "@"+lower {
			mentioned = true
			continue
		}
		kept = append(kept, tok)
	}
	return Mention{Mentioned: mentioned, CleanText: strings.Join(kept, " ")}
}

// nickSpecials are the punctuation characters RFC 2812 permits in nicks.
const nickSpecials = "[]\\`_^{|}"

// IsValidNick reports whether a nickname is structurally well-formed:
// 1–16 characters, starting with a letter or special, remaining
// characters alphanumeric, special, or hyphen.
func IsValidNick(nick string) bool {
	if len(nick) == 0 || len(nick) > maxNickLen {
		return false
	}
	for i, r := range nick {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case strings.ContainsRune(nickSpecials, r):
		case i > 0 && (r >= '0' && r <= '9'):
		case i > 0 && r == '-':
		default:
			return false
		}
	}
	return true
}

// channelPrefixes are the channel type prefixes of RFC 2812.
const channelPrefixes = "#&+!"

// IsValidChannel reports whether a channel name is structurally
// well-formed: 2–50 characters, a valid prefix, no whitespace, and no
// BEL (the protocol's forbidden control byte).
func IsValidChannel(name string) bool {
	if len(name) < 2 || len(name) > maxChannelLen {
		return false
	}
	if !strings.ContainsRune(channelPrefixes, rune(name[0])) {
		return false
	}
	return !strings.ContainsAny(name, " \t\r\n\x07")
}

// IsChannelTarget reports whether a message target names a channel
// rather than a user.
func IsChannelTarget(target string) bool {
	return len(target) > 0 && strings.ContainsRune(channelPrefixes, rune(target[0]))
}
