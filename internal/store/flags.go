package store

import "strings"

// Flag is one bit of the 5-character mail.flags bitmap, in the fixed order
// the spec pins positions to: Draft, Seen, Deleted, Flagged, Answered.
type Flag int

const (
	FlagDraft Flag = iota
	FlagSeen
	FlagDeleted
	FlagFlagged
	FlagAnswered
)

const numFlags = 5

var flagNames = [numFlags]string{"\\Draft", "\\Seen", "\\Deleted", "\\Flagged", "\\Answered"}

// FlagName returns the IMAP flag atom for f, e.g. "\Seen".
func FlagName(f Flag) string {
	return flagNames[f]
}

// NewFlagBitmap renders the 5-character flags string for the given set of
// named IMAP flags, ignoring \Recent (the server derives recency itself,
// it is never stored).
func NewFlagBitmap(names []string) string {
	var b [numFlags]byte
	for i := range b {
		b[i] = '0'
	}
	for _, n := range names {
		if i, ok := flagIndex(n); ok {
			b[i] = '1'
		}
	}
	return string(b[:])
}

func flagIndex(name string) (int, bool) {
	for i, n := range flagNames {
		if strings.EqualFold(n, name) {
			return i, true
		}
	}
	return 0, false
}

// ApplyFlagOp computes the new bitmap after a STORE operation: "FLAGS"
// replaces, "+FLAGS" sets the union, "-FLAGS" clears the named flags.
// Non-bitmap keyword flags have no storage position and are silently
// ignored, matching the fixed 5-position model (spec.md §3).
func ApplyFlagOp(current string, op string, names []string) string {
	cur := parseBitmap(current)
	switch op {
	case "FLAGS":
		for i := range cur {
			cur[i] = '0'
		}
		for _, n := range names {
			if i, ok := flagIndex(n); ok {
				cur[i] = '1'
			}
		}
	case "+FLAGS":
		for _, n := range names {
			if i, ok := flagIndex(n); ok {
				cur[i] = '1'
			}
		}
	case "-FLAGS":
		for _, n := range names {
			if i, ok := flagIndex(n); ok {
				cur[i] = '0'
			}
		}
	}
	return string(cur[:])
}

func parseBitmap(s string) [numFlags]byte {
	var b [numFlags]byte
	for i := range b {
		if i < len(s) {
			b[i] = s[i]
		} else {
			b[i] = '0'
		}
	}
	return b
}

// FlagsToNames converts a stored bitmap back to the list of IMAP flag
// atoms that are set, for FLAGS/FETCH responses.
func FlagsToNames(bitmap string) []string {
	b := parseBitmap(bitmap)
	var out []string
	for i, c := range b {
		if c == '1' {
			out = append(out, flagNames[i])
		}
	}
	return out
}

// LikePattern builds the `flags LIKE ?` pattern for a single flag predicate:
// '1' at the flag's position, '_' (SQL single-char wildcard) elsewhere.
func LikePattern(f Flag, set bool) string {
	b := [numFlags]byte{}
	for i := range b {
		b[i] = '_'
	}
	if set {
		b[f] = '1'
	} else {
		b[f] = '0'
	}
	return string(b[:])
}

// KeywordLikePattern builds the `flags LIKE ?` pattern for KEYWORD/UNKEYWORD,
// which only recognizes the five positional flags by name; an unrecognized
// keyword can never match any stored message.
func KeywordLikePattern(name string, set bool) (string, bool) {
	i, ok := flagIndex(name)
	if !ok {
		return "", false
	}
	return LikePattern(Flag(i), set), true
}
