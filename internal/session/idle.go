package session

import (
	"strings"
	"time"

	"kakimail/internal/changebus"
	"kakimail/internal/imapparser"
)

// idleTimeout is spec.md §4.C's IDLE inactivity bound: "a session idling
// for more than 30 minutes without a DONE is disconnected with a BYE".
const idleTimeout = 30 * time.Minute

// handleIdle replies with the continuation prompt and signals ActionIdle so
// session.go's dispatch loop hands control to runIdle, which owns the wait
// (it needs to read the terminating DONE line itself, outside the normal
// one-shot command/response cycle).
func handleIdle(sess *Session, tag string, _ bool, _ []imapparser.Node, _ string) ([]string, State, Action) {
	return []string{"+ idling"}, sess.state, ActionIdle
}

// runIdle waits for either a "DONE" line from the client, a change-bus event
// on the currently selected mailbox (if any), or idleTimeout, forwarding
// every event it sees as an untagged response before returning (spec.md
// §4.C IDLE algorithm). Reading the DONE line happens on a background
// goroutine since bufio.Reader has no way to participate in a select.
func (s *Session) runIdle(tag string) error {
	var events <-chan changebus.Event
	if s.state.Kind == Selected {
		ch, unsubscribe := s.deps.Store.Bus().Topic(s.state.MailboxID).Subscribe()
		defer unsubscribe()
		events = ch
	}

	done := make(chan string, 1)
	errc := make(chan error, 1)
	go s.readIdleDone(done, errc)

	timer := time.NewTimer(idleTimeout)
	defer timer.Stop()

	for {
		select {
		case line := <-done:
			return s.finishIdle(tag, line)
		case err := <-errc:
			return err
		case ev := <-events:
			if err := s.writeLine(string(ev)); err != nil {
				return err
			}
		case <-timer.C:
			_ = s.writeLine("* BYE IDLE timed out")
			s.state.Kind = Logout
			return nil
		}
	}
}

func (s *Session) readIdleDone(done chan<- string, errc chan<- error) {
	line, err := s.readLine()
	if err != nil {
		errc <- err
		return
	}
	done <- line
}

func (s *Session) finishIdle(tag, line string) error {
	if !strings.EqualFold(strings.TrimSpace(line), "DONE") {
		return s.writeLine(tag + " BAD expected DONE")
	}
	return s.writeLine(tag + " OK IDLE terminated")
}
