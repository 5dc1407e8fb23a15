package response

import (
	"strings"
	"testing"

	"kakimail/internal/imapparser"
)

func TestBuildBodyStructurePlainText(t *testing.T) {
	raw := "Content-Type: text/plain; charset=us-ascii\r\n\r\nHello\r\nWorld"
	bs := BuildBodyStructure(raw)
	if !strings.HasPrefix(bs, "(\"TEXT\" \"PLAIN\"") {
		t.Errorf("unexpected structure: %s", bs)
	}
}

func TestBuildBodyStructureDefaultsToTextPlain(t *testing.T) {
	raw := "Subject: no content type\r\n\r\nbody"
	bs := BuildBodyStructure(raw)
	if !strings.Contains(bs, "\"TEXT\" \"PLAIN\"") {
		t.Errorf("expected default text/plain, got %s", bs)
	}
}

func TestExtractSectionHeaderAndText(t *testing.T) {
	raw := "Subject: hi\r\nFrom: a@b.com\r\n\r\nbody text"
	h, err := ExtractSection(raw, imapparser.Section{Kind: imapparser.SecHeader})
	if err != nil {
		t.Fatalf("extract header: %v", err)
	}
	if !strings.Contains(h, "Subject: hi") {
		t.Errorf("expected header text, got %q", h)
	}

	body, err := ExtractSection(raw, imapparser.Section{Kind: imapparser.SecText})
	if err != nil {
		t.Fatalf("extract text: %v", err)
	}
	if body != "body text" {
		t.Errorf("expected body text, got %q", body)
	}
}

func TestExtractSectionHeaderFields(t *testing.T) {
	raw := "Subject: hi\r\nFrom: a@b.com\r\nTo: c@d.com\r\n\r\nbody"
	got, err := ExtractSection(raw, imapparser.Section{Kind: imapparser.SecHeaderFields, Fields: []string{"From"}})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !strings.Contains(got, "From: a@b.com") || strings.Contains(got, "Subject") {
		t.Errorf("expected only From header, got %q", got)
	}
}

func TestExtractSectionHeaderFieldsNot(t *testing.T) {
	raw := "Subject: hi\r\nFrom: a@b.com\r\n\r\nbody"
	got, err := ExtractSection(raw, imapparser.Section{Kind: imapparser.SecHeaderFieldsNot, Fields: []string{"From"}})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if strings.Contains(got, "From:") || !strings.Contains(got, "Subject: hi") {
		t.Errorf("expected From excluded, Subject included, got %q", got)
	}
}

func TestApplyPartial(t *testing.T) {
	data := "0123456789"
	got := ApplyPartial(data, imapparser.Partial{Present: true, Start: 2, HasCount: true, Count: 3})
	if got != "234" {
		t.Errorf("expected 234, got %q", got)
	}
	if ApplyPartial(data, imapparser.Partial{}) != data {
		t.Errorf("expected no-op when Present is false")
	}
}
