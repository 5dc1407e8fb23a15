package session

import (
	"encoding/base64"
	"strings"
	"testing"

	"kakimail/internal/imapparser"
)

func TestHandleCapability(t *testing.T) {
	sess := newTestSession(t, newTestStore(t), NotAuthed)
	lines, next, action := handleCapability(sess, "a1", false, nil, "")
	if action != ActionNone {
		t.Fatalf("expected ActionNone, got %v", action)
	}
	if next.Kind != NotAuthed {
		t.Fatalf("CAPABILITY must not change state")
	}
	if !strings.HasPrefix(lines[0], "* CAPABILITY IMAP4rev2") {
		t.Fatalf("unexpected capability line: %q", lines[0])
	}
	if !strings.Contains(lines[1], "a1 OK") {
		t.Fatalf("expected tagged OK, got %q", lines[1])
	}
}

func TestHandleLogout(t *testing.T) {
	sess := newTestSession(t, newTestStore(t), Authed)
	lines, next, action := handleLogout(sess, "a1", false, nil, "")
	if action != ActionLogout {
		t.Fatalf("expected ActionLogout, got %v", action)
	}
	if next.Kind != Logout {
		t.Fatalf("expected Logout state, got %v", next.Kind)
	}
	if lines[0] != "* BYE IMAP4rev2 Server logging out" {
		t.Fatalf("unexpected BYE line: %q", lines[0])
	}
}

func TestHandleLoginSuccessAndFailure(t *testing.T) {
	st := newTestStore(t)
	newTestUser(t, st, "alice", "hunter2")
	sess := newTestSession(t, st, NotAuthed)

	lines, next, action := handleLogin(sess, "a1", false, []imapparser.Node{
		imapparser.Atom("alice"), imapparser.Atom("hunter2"),
	}, "")
	if action != ActionNone {
		t.Fatalf("unexpected action %v", action)
	}
	if next.Kind != Authed || next.Username != "alice" {
		t.Fatalf("expected Authed as alice, got %+v", next)
	}
	if !strings.Contains(lines[0], "OK") {
		t.Fatalf("expected OK, got %q", lines[0])
	}

	sess2 := newTestSession(t, st, NotAuthed)
	lines, next, _ = handleLogin(sess2, "a2", false, []imapparser.Node{
		imapparser.Atom("alice"), imapparser.Atom("wrongpass"),
	}, "")
	if next.Kind != NotAuthed {
		t.Fatalf("failed login must not change state")
	}
	if !strings.Contains(lines[0], "NO") {
		t.Fatalf("expected NO for bad password, got %q", lines[0])
	}
}

func TestHandleAuthenticatePlainSASLIR(t *testing.T) {
	st := newTestStore(t)
	newTestUser(t, st, "alice", "hunter2")
	sess := newTestSession(t, st, NotAuthed)

	resp := base64.StdEncoding.EncodeToString([]byte("\x00alice\x00hunter2"))
	lines, next, action := handleAuthenticate(sess, "a1", false, []imapparser.Node{
		imapparser.Atom("PLAIN"), imapparser.Atom(resp),
	}, "")
	if action != ActionNone {
		t.Fatalf("unexpected action %v", action)
	}
	if next.Kind != Authed {
		t.Fatalf("expected Authed, got %v", next.Kind)
	}
	if !strings.Contains(lines[0], "OK") {
		t.Fatalf("expected OK, got %q", lines[0])
	}
}

func TestHandleAuthenticatePlainContinuation(t *testing.T) {
	st := newTestStore(t)
	newTestUser(t, st, "alice", "hunter2")
	sess := newTestSession(t, st, NotAuthed)

	lines, next, action := handleAuthenticate(sess, "a1", false, []imapparser.Node{imapparser.Atom("PLAIN")}, "")
	if action != ActionRedo {
		t.Fatalf("expected ActionRedo prompting for a continuation, got %v", action)
	}
	if lines[0] != "+ " {
		t.Fatalf("expected continuation prompt, got %q", lines[0])
	}
	if next.Kind != NotAuthed {
		t.Fatalf("prompting must not change state")
	}

	resp := base64.StdEncoding.EncodeToString([]byte("\x00alice\x00hunter2"))
	lines, next, action = handleAuthenticate(sess, "a1", false, []imapparser.Node{imapparser.Atom("PLAIN")}, resp)
	if action != ActionNone {
		t.Fatalf("unexpected action %v", action)
	}
	if next.Kind != Authed {
		t.Fatalf("expected Authed after continuation, got %v", next.Kind)
	}
	_ = lines
}

func TestHandleAuthenticateUnsupportedMechanism(t *testing.T) {
	sess := newTestSession(t, newTestStore(t), NotAuthed)
	lines, _, action := handleAuthenticate(sess, "a1", false, []imapparser.Node{imapparser.Atom("GSSAPI")}, "")
	if action != ActionNone {
		t.Fatalf("unexpected action %v", action)
	}
	if !strings.Contains(lines[0], "BAD") {
		t.Fatalf("expected BAD for unsupported mechanism, got %q", lines[0])
	}
}

func TestHandleStartTLSPromotes(t *testing.T) {
	sess := newTestSession(t, newTestStore(t), NotAuthed)
	lines, _, action := handleStartTLS(sess, "a1", false, nil, "")
	if action != ActionPromoteToTLS {
		t.Fatalf("expected ActionPromoteToTLS, got %v", action)
	}
	if !strings.Contains(lines[0], "OK") {
		t.Fatalf("expected OK begin TLS, got %q", lines[0])
	}
}
