package session

import (
	"strings"
	"testing"

	"kakimail/internal/imapparser"
	"kakimail/internal/store"
)

func TestHandleSelectAndExamine(t *testing.T) {
	st := newTestStore(t)
	uid := newTestUser(t, st, "alice", "pw")
	sess := newTestSession(t, st, Authed)
	sess.state.UserID = uid

	lines, next, action := handleSelect(sess, "a1", false, []imapparser.Node{imapparser.Atom("INBOX")}, "")
	if action != ActionNone {
		t.Fatalf("unexpected action %v", action)
	}
	if next.Kind != Selected || next.ReadOnly {
		t.Fatalf("expected read-write Selected, got %+v", next)
	}
	if !strings.Contains(lines[len(lines)-1], "READ-WRITE] SELECT completed") {
		t.Fatalf("unexpected final line: %q", lines[len(lines)-1])
	}

	sess2 := newTestSession(t, st, Authed)
	sess2.state.UserID = uid
	lines, next, _ = handleExamine(sess2, "a2", false, []imapparser.Node{imapparser.Atom("INBOX")}, "")
	if !next.ReadOnly {
		t.Fatalf("EXAMINE must select read-only")
	}
	if !strings.Contains(lines[len(lines)-1], "READ-ONLY] EXAMINE completed") {
		t.Fatalf("unexpected final line: %q", lines[len(lines)-1])
	}
}

func TestHandleSelectNoSuchMailbox(t *testing.T) {
	st := newTestStore(t)
	uid := newTestUser(t, st, "alice", "pw")
	sess := newTestSession(t, st, Authed)
	sess.state.UserID = uid

	lines, next, _ := handleSelect(sess, "a1", false, []imapparser.Node{imapparser.Atom("Nonexistent")}, "")
	if next.Kind != Authed {
		t.Fatalf("failed SELECT must not change state")
	}
	if !strings.Contains(lines[0], "NO") {
		t.Fatalf("expected NO, got %q", lines[0])
	}
}

func TestHandleCreateDeleteRename(t *testing.T) {
	st := newTestStore(t)
	uid := newTestUser(t, st, "alice", "pw")
	sess := newTestSession(t, st, Authed)
	sess.state.UserID = uid

	lines, _, _ := handleCreate(sess, "a1", false, []imapparser.Node{imapparser.Atom("Archive")}, "")
	if !strings.Contains(lines[0], "OK") {
		t.Fatalf("CREATE failed: %q", lines[0])
	}

	lines, _, _ = handleRename(sess, "a2", false, []imapparser.Node{
		imapparser.Atom("Archive"), imapparser.Atom("Old"),
	}, "")
	if !strings.Contains(lines[0], "OK") {
		t.Fatalf("RENAME failed: %q", lines[0])
	}

	lines, _, _ = handleDelete(sess, "a3", false, []imapparser.Node{imapparser.Atom("Old")}, "")
	if !strings.Contains(lines[0], "OK") {
		t.Fatalf("DELETE failed: %q", lines[0])
	}

	boxes, err := st.GetMailboxNamesForUser(uid)
	if err != nil {
		t.Fatalf("list mailboxes: %v", err)
	}
	for _, b := range boxes {
		if b.Name == "Old" || b.Name == "Archive" {
			t.Fatalf("expected Old/Archive to be gone, found %+v", boxes)
		}
	}
}

func TestHandleSubscribeUnsubscribe(t *testing.T) {
	st := newTestStore(t)
	uid := newTestUser(t, st, "alice", "pw")
	sess := newTestSession(t, st, Authed)
	sess.state.UserID = uid

	if err := st.CreateMailbox(uid, "Archive"); err != nil {
		t.Fatalf("create mailbox: %v", err)
	}

	lines, _, _ := handleSubscribe(sess, "a1", false, []imapparser.Node{imapparser.Atom("Archive")}, "")
	if !strings.Contains(lines[0], "OK") {
		t.Fatalf("SUBSCRIBE failed: %q", lines[0])
	}

	boxes, _ := st.GetMailboxNamesForUser(uid)
	var found bool
	for _, b := range boxes {
		if b.Name == "Archive" && b.Subscribed {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected Archive subscribed, got %+v", boxes)
	}

	lines, _, _ = handleUnsubscribe(sess, "a2", false, []imapparser.Node{imapparser.Atom("Archive")}, "")
	if !strings.Contains(lines[0], "OK") {
		t.Fatalf("UNSUBSCRIBE failed: %q", lines[0])
	}
}

func TestHandleListWildcards(t *testing.T) {
	st := newTestStore(t)
	uid := newTestUser(t, st, "alice", "pw")
	if err := st.CreateMailbox(uid, "INBOX/Sent"); err != nil {
		t.Fatalf("create mailbox: %v", err)
	}
	if err := st.CreateMailbox(uid, "INBOX/Drafts"); err != nil {
		t.Fatalf("create mailbox: %v", err)
	}
	sess := newTestSession(t, st, Authed)
	sess.state.UserID = uid

	lines, _, _ := handleList(sess, "a1", false, []imapparser.Node{
		imapparser.Atom(""), imapparser.Atom("INBOX/*"),
	}, "")
	if len(lines) != 3 {
		t.Fatalf("expected 2 mailboxes + tagged OK, got %v", lines)
	}
	if !strings.Contains(lines[len(lines)-1], "OK") {
		t.Fatalf("expected tagged OK at end, got %q", lines[len(lines)-1])
	}
}

func TestHandleStatus(t *testing.T) {
	st := newTestStore(t)
	uid := newTestUser(t, st, "alice", "pw")
	mbox, err := st.GetMailboxID(uid, "INBOX")
	if err != nil {
		t.Fatalf("get mailbox: %v", err)
	}
	mustReplicate(t, st, mbox, "Subject: hi\r\n\r\nhello")

	sess := newTestSession(t, st, Authed)
	sess.state.UserID = uid

	lines, _, _ := handleStatus(sess, "a1", false, []imapparser.Node{
		imapparser.Atom("INBOX"),
		imapparser.List{imapparser.Atom("MESSAGES"), imapparser.Atom("UNSEEN")},
	}, "")
	if !strings.Contains(lines[0], "MESSAGES 1") || !strings.Contains(lines[0], "UNSEEN 1") {
		t.Fatalf("unexpected STATUS line: %q", lines[0])
	}
}

func TestHandleCloseExpungesDeleted(t *testing.T) {
	st := newTestStore(t)
	uid := newTestUser(t, st, "alice", "pw")
	mbox, err := st.GetMailboxID(uid, "INBOX")
	if err != nil {
		t.Fatalf("get mailbox: %v", err)
	}
	msgUID := mustReplicate(t, st, mbox, "Subject: hi\r\n\r\nhello")
	if err := st.SetFlags(msgUID, store.NewFlagBitmap([]string{"\\Deleted"})); err != nil {
		t.Fatalf("set flags: %v", err)
	}

	sess := newTestSession(t, st, Selected)
	sess.state.UserID = uid
	sess.state.MailboxID = mbox

	_, next, _ := handleClose(sess, "a1", false, nil, "")
	if next.Kind != Authed {
		t.Fatalf("expected Authed after CLOSE, got %v", next.Kind)
	}

	count, err := st.MailCount(&mbox)
	if err != nil {
		t.Fatalf("mail count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected CLOSE to expunge deleted messages, count=%d", count)
	}
}
