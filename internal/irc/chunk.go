package irc

import "strings"

// seamThresholdPct is the minimum fraction of maxLen a newline or space
// must sit past for it to be used as a split point. Below it a hard cut
// wastes less of the line.
const seamThresholdPct = 30

// Chunk splits text into protocol-sized pieces. Explicit line breaks
// always split (the wire cannot carry a newline); overlong segments
// break at the last space past the seam threshold, hard-cutting
// mid-word only when no seam falls late enough. Trailing whitespace is
// trimmed from each chunk; leading and internal whitespace is
// preserved. Whitespace-only input yields no chunks.
func Chunk(text string, maxLen int) []string {
	if maxLen <= 0 || strings.TrimSpace(text) == "" {
		return nil
	}

	threshold := maxLen * seamThresholdPct / 100
	var chunks []string
	for _, segment := range strings.Split(text, "\n") {
		for len(segment) > maxLen {
			window := segment[:maxLen]
			cut, skip := maxLen, 0
			if idx := strings.LastIndexByte(window, ' '); idx > threshold {
				cut, skip = idx, 1
			}
			appendChunk(&chunks, segment[:cut])
			segment = segment[cut+skip:]
		}
		appendChunk(&chunks, segment)
	}
	return chunks
}

func appendChunk(chunks *[]string, c string) {
	c = strings.TrimRight(c, " \t\r")
	if c != "" {
		*chunks = append(*chunks, c)
	}
}
