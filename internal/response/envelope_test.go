package response

import (
	"strings"
	"testing"
)

func TestQuoteOrNIL(t *testing.T) {
	if QuoteOrNIL("") != "NIL" {
		t.Errorf("expected NIL for empty string")
	}
	got := QuoteOrNIL("Hello \"World\"")
	if got != "\"Hello \\\"World\\\"\"" {
		t.Errorf("unexpected quoted output: %s", got)
	}
}

func TestParseHeaderFolded(t *testing.T) {
	raw := "Subject: Long\r\n continuing line\r\nFrom: sender@example.com\r\n\r\nBody"
	h := parseHeader(raw)
	if h.Get("Subject") != "Long continuing line" {
		t.Errorf("expected folded header, got %q", h.Get("Subject"))
	}
	if h.Get("From") != "sender@example.com" {
		t.Errorf("from mismatch: %q", h.Get("From"))
	}
}

func TestBuildEnvelopeDefaults(t *testing.T) {
	raw := "Date: Mon, 01 Jan 2024 00:00:00 +0000\r\nSubject: hi\r\nFrom: alice@example.com\r\nTo: bob@example.com\r\n\r\nbody"
	env := BuildEnvelope(raw)
	if !strings.Contains(env, "\"hi\"") {
		t.Errorf("expected subject in envelope: %s", env)
	}
	if !strings.Contains(env, "\"alice\"") || !strings.Contains(env, "\"example.com\"") {
		t.Errorf("expected from address parts in envelope: %s", env)
	}
	// Sender/Reply-To default to From when absent.
	if strings.Count(env, "alice") < 3 {
		t.Errorf("expected From to be reused for Sender and Reply-To: %s", env)
	}
}

func TestBuildEnvelopeEmptyAddressIsNil(t *testing.T) {
	raw := "Subject: hi\r\n\r\nbody"
	env := BuildEnvelope(raw)
	if !strings.Contains(env, "NIL") {
		t.Errorf("expected NIL fields for missing headers: %s", env)
	}
}

func TestMessageBody(t *testing.T) {
	raw := "Subject: hi\r\n\r\nHello world"
	if MessageBody(raw) != "Hello world" {
		t.Errorf("unexpected body: %q", MessageBody(raw))
	}
}
