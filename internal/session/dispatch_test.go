package session

import (
	"strings"
	"testing"

	"kakimail/internal/imapparser"
)

func TestDispatchUnknownVerb(t *testing.T) {
	sess := newTestSession(t, newTestStore(t), NotAuthed)
	lines, _, action := sess.dispatch(&imapparser.Pending{Tag: "a1", Verb: "BOGUS"}, "")
	if action != ActionNone {
		t.Fatalf("unexpected action %v", action)
	}
	if !strings.Contains(lines[0], "BAD unknown command") {
		t.Fatalf("expected BAD unknown command, got %q", lines[0])
	}
}

func TestDispatchRejectsWrongState(t *testing.T) {
	sess := newTestSession(t, newTestStore(t), NotAuthed)
	lines, next, _ := sess.dispatch(&imapparser.Pending{Tag: "a1", Verb: imapparser.VSelect,
		Args: []imapparser.Node{imapparser.Atom("INBOX")}}, "")
	if !strings.Contains(lines[0], "BAD bad state") {
		t.Fatalf("expected SELECT to be rejected in NotAuthed, got %q", lines[0])
	}
	if next.Kind != NotAuthed {
		t.Fatalf("rejected command must not change state")
	}
}

func TestDispatchRoutesSelectAndExamineIndependently(t *testing.T) {
	st := newTestStore(t)
	uid := newTestUser(t, st, "alice", "pw")

	sess := newTestSession(t, st, Authed)
	sess.state.UserID = uid
	_, next, _ := sess.dispatch(&imapparser.Pending{Tag: "a1", Verb: imapparser.VSelect,
		Args: []imapparser.Node{imapparser.Atom("INBOX")}}, "")
	if next.ReadOnly {
		t.Fatalf("SELECT must route to a read-write open")
	}

	sess2 := newTestSession(t, st, Authed)
	sess2.state.UserID = uid
	_, next2, _ := sess2.dispatch(&imapparser.Pending{Tag: "a2", Verb: imapparser.VExamine,
		Args: []imapparser.Node{imapparser.Atom("INBOX")}}, "")
	if !next2.ReadOnly {
		t.Fatalf("EXAMINE must route to a read-only open, not share handleSelect's state")
	}
}
