package parse

import (
	"regexp"
	"strings"
)

var nonAlnumRe = regexp.MustCompile(`[^A-Z0-9]+`)

// Unreadable is the plate slug recorded when no plate text could be read.
const Unreadable = "n-a"

// Plate converts raw recognizer output into the canonical plate slug used for
// storage, comparison and allow-list lookups.
//
// The text is uppercased, every run of characters outside A-Z0-9 becomes a
// single "-", and the result is lowercased. Input with nothing left after
// trimming maps to Unreadable.
func Plate(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return Unreadable
	}
	s = nonAlnumRe.ReplaceAllString(s, "-")
	return strings.ToLower(s)
}

// IsUnreadable reports whether slug is the unreadable sentinel.
func IsUnreadable(slug string) bool {
	return slug == Unreadable
}
