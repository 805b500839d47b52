package discord

import (
	"strings"
	"unicode/utf8"
)

const (
	MaxDiscordMessageLen = 2000
	SafeChunkLen         = 1900
)

// BuildLongMessages splits a reply into Discord-sized chunks. Concatenating
// the chunks yields the original text. Empty input yields no chunks.
func BuildLongMessages(message string) []string {
	if message == "" {
		return nil
	}
	if len(message) <= MaxDiscordMessageLen {
		return []string{message}
	}
	return splitMessage(message, SafeChunkLen)
}

// splitMessage cuts at the last paragraph break inside the window, then the
// last line break, then the last space, and only then mid-word.
func splitMessage(message string, limit int) []string {
	var chunks []string
	rest := message
	for len(rest) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(rest[cut]) {
			cut--
		}
		window := rest[:cut]

		switch {
		case strings.LastIndex(window, "\n\n") > 0:
			cut = strings.LastIndex(window, "\n\n") + 2
		case strings.LastIndexByte(window, '\n') > 0:
			cut = strings.LastIndexByte(window, '\n') + 1
		case strings.LastIndexByte(window, ' ') > 0:
			cut = strings.LastIndexByte(window, ' ') + 1
		}
		if cut == 0 {
			// a single rune wider than limit
			_, size := utf8.DecodeRuneInString(rest)
			cut = size
		}

		chunks = append(chunks, rest[:cut])
		rest = rest[cut:]
	}
	if rest != "" {
		chunks = append(chunks, rest)
	}
	return chunks
}
