package session

import "strings"

// matchMailboxPattern implements the LIST/LSUB wildcard grammar: "*"
// matches zero or more characters including the hierarchy delimiter, "%"
// matches zero or more characters but not the delimiter. Adapted from the
// teacher's
// internal/server/utils/pattern.go recursive matcher.
func matchMailboxPattern(name, pattern string) bool {
	return matchWildcard(name, pattern, 0, 0)
}

func matchWildcard(text, pattern string, textPos, patternPos int) bool {
	const delim = "/"
	for patternPos < len(pattern) {
		switch pattern[patternPos] {
		case '*':
			patternPos++
			if patternPos >= len(pattern) {
				return true
			}
			if matchWildcard(text, pattern, textPos, patternPos) {
				return true
			}
			for textPos < len(text) {
				textPos++
				if matchWildcard(text, pattern, textPos, patternPos) {
					return true
				}
			}
			return false
		case '%':
			patternPos++
			if patternPos >= len(pattern) {
				return !strings.Contains(text[textPos:], delim)
			}
			if matchWildcard(text, pattern, textPos, patternPos) {
				return true
			}
			for textPos < len(text) && !strings.HasPrefix(text[textPos:], delim) {
				textPos++
				if matchWildcard(text, pattern, textPos, patternPos) {
					return true
				}
			}
			return false
		default:
			if textPos >= len(text) || text[textPos] != pattern[patternPos] {
				return false
			}
			textPos++
			patternPos++
		}
	}
	return textPos >= len(text)
}

// canonicalPattern combines a LIST reference and pattern argument into one
// string to match against (RFC 3501 §6.3.8).
func canonicalPattern(reference, pattern string) string {
	if strings.HasPrefix(pattern, "/") || reference == "" {
		return pattern
	}
	if strings.HasSuffix(reference, "/") {
		return reference + pattern
	}
	return reference + "/" + pattern
}
