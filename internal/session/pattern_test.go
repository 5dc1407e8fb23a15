package session

import "testing"

func TestMatchMailboxPattern(t *testing.T) {
	cases := []struct {
		name, pattern string
		want          bool
	}{
		{"INBOX", "INBOX", true},
		{"INBOX", "inbox", false},
		{"INBOX/Sent", "INBOX/*", true},
		{"INBOX/Sent/2024", "INBOX/%", false},
		{"INBOX/Sent", "INBOX/%", true},
		{"Archive", "*", true},
		{"Archive/Old", "*", true},
		{"Archive/Old", "%", false},
	}
	for _, c := range cases {
		if got := matchMailboxPattern(c.name, c.pattern); got != c.want {
			t.Errorf("matchMailboxPattern(%q, %q) = %v, want %v", c.name, c.pattern, got, c.want)
		}
	}
}

func TestCanonicalPattern(t *testing.T) {
	cases := []struct {
		reference, pattern, want string
	}{
		{"", "INBOX", "INBOX"},
		{"INBOX", "Sent", "INBOX/Sent"},
		{"INBOX/", "Sent", "INBOX/Sent"},
		{"INBOX", "/Sent", "/Sent"},
	}
	for _, c := range cases {
		if got := canonicalPattern(c.reference, c.pattern); got != c.want {
			t.Errorf("canonicalPattern(%q, %q) = %q, want %q", c.reference, c.pattern, got, c.want)
		}
	}
}
