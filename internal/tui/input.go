package tui

import (
	"strings"
	"unicode/utf8"
)

// maxInputLen caps every form field, in runes.
const maxInputLen = 256

// editRune applies one keypress to a form field. Backspace drops the last
// rune; a single printable rune is appended while the field is under
// maxInputLen; named keys leave the field alone.
func editRune(text, key string) string {
	if key == "backspace" {
		_, size := utf8.DecodeLastRuneInString(text)
		return text[:len(text)-size]
	}
	if utf8.RuneCountInString(key) != 1 || utf8.RuneCountInString(text) >= maxInputLen {
		return text
	}
	return text + key
}

// truncateToHeight keeps the first maxLines lines of s. maxLines <= 0 keeps everything.
func truncateToHeight(s string, maxLines int) string {
	if maxLines <= 0 {
		return s
	}
	end := 0
	for range maxLines {
		i := strings.IndexByte(s[end:], '\n')
		if i < 0 {
			return s
		}
		end += i + 1
	}
	return s[:end]
}
