package session

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"

	"kakimail/internal/wire"
)

func TestHandleIdlePromptsAndSignalsIdle(t *testing.T) {
	sess := newTestSession(t, newTestStore(t), Selected)
	lines, next, action := handleIdle(sess, "a1", false, nil, "")
	if action != ActionIdle {
		t.Fatalf("expected ActionIdle, got %v", action)
	}
	if lines[0] != "+ idling" {
		t.Fatalf("unexpected idle prompt: %q", lines[0])
	}
	if next.Kind != Selected {
		t.Fatalf("idle prompt must not change state")
	}
}

func TestRunIdleTerminatesOnDone(t *testing.T) {
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })

	st := newTestStore(t)
	sess := New(wire.New(server, false), Deps{Store: st})
	sess.state.Kind = Selected
	mbox, err := st.GetMailboxID(newTestUser(t, st, "alice", "pw"), "INBOX")
	if err != nil {
		t.Fatalf("get mailbox: %v", err)
	}
	sess.state.MailboxID = mbox

	done := make(chan error, 1)
	go func() { done <- sess.runIdle("a1") }()

	clientReader := bufio.NewReader(client)
	if _, err := client.Write([]byte("DONE\r\n")); err != nil {
		t.Fatalf("write DONE: %v", err)
	}

	lineCh := make(chan string, 1)
	readErrCh := make(chan error, 1)
	go func() {
		line, err := clientReader.ReadString('\n')
		if err != nil {
			readErrCh <- err
			return
		}
		lineCh <- line
	}()

	select {
	case line := <-lineCh:
		if !strings.Contains(line, "a1 OK IDLE terminated") {
			t.Fatalf("unexpected IDLE termination reply: %q", line)
		}
	case err := <-readErrCh:
		t.Fatalf("read reply: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatalf("did not receive IDLE termination reply")
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runIdle returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("runIdle did not return after DONE")
	}
}
