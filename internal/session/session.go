// Package session implements the per-connection IMAP4rev2 state machine
// (spec.md §4.C, §5): it reads one command line at a time off a
// wire.Stream, hands it to the imapparser, resolves at most one literal
// continuation, dispatches the parsed command through a verb/state lookup
// table to a handler function, writes the resulting response lines back in
// order, and applies whatever post-action the handler returned (STARTTLS
// upgrade, an AUTHENTICATE continuation, or IDLE).
//
// Handlers are pure functions of (tag, uidMode, args, continuation line,
// State, *store.Store) returning (response lines, next State, post-action);
// session.go owns every side effect (reading, writing, sleeping, locking).
package session

import (
	"bufio"
	"crypto/tls"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"kakimail/internal/archive"
	"kakimail/internal/imapparser"
	"kakimail/internal/store"
	"kakimail/internal/wire"
)

// maxLineBuffer matches spec.md §4.A: "Buffer size at the Session layer is
// 65,536 bytes per read."
const maxLineBuffer = 65536

// Kind is the coarse state spec.md §3 pins as a lattice:
// NotAuthed < Authed < Selected.
type Kind int

const (
	NotAuthed Kind = iota
	Authed
	Selected
	Logout
)

func (k Kind) String() string {
	switch k {
	case NotAuthed:
		return "not authenticated"
	case Authed:
		return "authenticated"
	case Selected:
		return "selected"
	case Logout:
		return "logout"
	}
	return "unknown"
}

// State is the full per-connection state a handler reads and may replace.
type State struct {
	Kind Kind

	UserID      int64
	Username    string
	MailboxID   int64
	MailboxName string
	ReadOnly    bool
	UIDValidity int64

	// SearchRes is the session's saved SEARCH result ("$"), populated by a
	// RETURN (SAVE) search (spec.md §4.C).
	SearchRes []int64
}

// Action is the post-action a handler returns alongside its response lines
// (spec.md §4.C "Command Handlers"): transport control lifted out of
// otherwise-pure handler functions (spec.md §9 "Post-action pattern").
type Action int

const (
	// ActionNone: nothing further, read the next command line.
	ActionNone Action = iota
	// ActionPromoteToTLS: after writing the response, upgrade the stream.
	ActionPromoteToTLS
	// ActionRedo: read one more line and re-invoke the same handler with it
	// as the continuation argument (AUTHENTICATE's SASL response line).
	ActionRedo
	// ActionIdle: enter IDLE wait.
	ActionIdle
	// ActionLogout: close the connection after writing the response.
	ActionLogout
)

// Deps are the server-wide collaborators every session shares.
type Deps struct {
	Store    *store.Store
	TLS      *tls.Config
	Logger   *log.Logger
	Archiver *archive.Archiver // nil disables archiving
}

// Session is one connection's state machine. It is not safe for concurrent
// use; exactly one goroutine (Run) owns it (spec.md §5 "Scheduling").
type Session struct {
	ID     string
	deps   Deps
	stream *wire.Stream
	reader *bufio.Reader
	state  State
}

// New wraps an accepted connection (already behind wire.New) into a fresh
// session in the NotAuthed state.
func New(stream *wire.Stream, deps Deps) *Session {
	return &Session{
		ID:     uuid.NewString(),
		deps:   deps,
		stream: stream,
		reader: bufio.NewReaderSize(stream, maxLineBuffer),
		state:  State{Kind: NotAuthed},
	}
}

// Run drives the session until LOGOUT, EOF, or a transport error
// (spec.md §4.C greeting + dispatch loop).
func (s *Session) Run() {
	defer s.stream.Close()

	if err := s.writeLine("* OK IMAP4rev2 Service Ready"); err != nil {
		return
	}

	for s.state.Kind != Logout {
		line, err := s.readLine()
		if err != nil {
			// EOF or a read error both mean the connection is gone; spec.md
			// §5 treats EOF as an implicit LOGOUT and §7 treats a transport
			// failure as "log and close".
			return
		}

		if err := s.handleLine(line); err != nil {
			s.deps.logf("session %s: %v", s.ID, err)
			return
		}
	}
}

// handleLine parses and dispatches a single command line, recovering from
// any panic at the command boundary into a BAD response (spec.md §7:
// "Exceptions... are caught at the session's command boundary, logged, and
// turned into a BAD response. They never terminate the listener.").
func (s *Session) handleLine(line string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.deps.logf("session %s: recovered panic: %v", s.ID, r)
			err = s.writeLine("* BAD internal error")
		}
	}()

	pending, perr := imapparser.Parse(line)
	if perr != nil {
		tag := "*"
		if f := strings.Fields(line); len(f) > 0 {
			tag = f[0]
		}
		return s.writeLine(fmt.Sprintf("%s BAD %s", tag, perr.Error()))
	}
	if pending == nil {
		// Empty line: accepted and ignored (spec.md §4.B).
		return nil
	}

	if pending.Literal != nil {
		if err := s.resolveLiteral(pending); err != nil {
			return err
		}
	}

	return s.dispatchLoop(pending, "")
}

// resolveLiteral reads exactly N octets for a pending literal, issuing the
// "+ Ready for literal data" continuation prompt first unless the client
// used LITERAL+ ({N+}), per spec.md §4.B.
func (s *Session) resolveLiteral(p *imapparser.Pending) error {
	lit := p.Literal
	if lit.Sync {
		if err := s.writeLine("+ Ready for literal data"); err != nil {
			return err
		}
	}
	buf := make([]byte, lit.N)
	if lit.N > 0 {
		if _, err := readFull(s.reader, buf); err != nil {
			return err
		}
	}
	p.ResolveLiteral(buf)

	// A literal is followed by the rest of the original line (usually just
	// CRLF); drain it so the next readLine starts clean.
	rest, err := s.reader.ReadString('\n')
	if err != nil {
		return err
	}
	rest = strings.TrimRight(rest, "\r\n")
	if rest != "" {
		// Trailing text after the literal is not modeled by this grammar
		// (spec.md's literal is always the last token); ignore it rather
		// than fail the command outright.
		s.deps.logf("session %s: ignoring trailing text after literal: %q", s.ID, rest)
	}
	return nil
}

// dispatchLoop invokes the matching handler, writes its responses, and
// applies its post-action, looping once more on ActionRedo (a single
// continuation round-trip; a second ActionRedo for the same command is a
// protocol error per spec.md §4.C).
func (s *Session) dispatchLoop(p *imapparser.Pending, cont string) error {
	lines, next, action := s.dispatch(p, cont)
	for _, l := range lines {
		if err := s.writeLine(l); err != nil {
			return err
		}
	}
	s.state = next

	switch action {
	case ActionNone:
		return nil
	case ActionLogout:
		return nil
	case ActionPromoteToTLS:
		if err := s.stream.UpgradeToTLS(s.deps.TLS, s.deps.logf); err != nil {
			return err
		}
		s.reader = bufio.NewReaderSize(s.stream, maxLineBuffer)
		return nil
	case ActionIdle:
		return s.runIdle(p.Tag)
	case ActionRedo:
		line, err := s.readLine()
		if err != nil {
			return err
		}
		return s.dispatchLoopOnce(p, line)
	}
	return nil
}

// dispatchLoopOnce re-invokes the same command with a continuation line,
// refusing a second continuation request (spec.md §4.C: "a second
// RedoForNextMsg in the same command is a protocol error").
func (s *Session) dispatchLoopOnce(p *imapparser.Pending, cont string) error {
	lines, next, action := s.dispatch(p, cont)
	for _, l := range lines {
		if err := s.writeLine(l); err != nil {
			return err
		}
	}
	s.state = next

	switch action {
	case ActionPromoteToTLS:
		if err := s.stream.UpgradeToTLS(s.deps.TLS, s.deps.logf); err != nil {
			return err
		}
		s.reader = bufio.NewReaderSize(s.stream, maxLineBuffer)
	case ActionIdle:
		return s.runIdle(p.Tag)
	case ActionRedo:
		return s.writeLine(fmt.Sprintf("%s BAD only one continuation permitted", p.Tag))
	}
	return nil
}

func (d Deps) logf(format string, v ...interface{}) {
	if d.Logger != nil {
		d.Logger.Printf(format, v...)
	} else {
		log.Printf(format, v...)
	}
}

// readLine reads one CRLF (or bare LF) terminated line, without the
// terminator.
func (s *Session) readLine() (string, error) {
	line, err := s.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (s *Session) writeLine(line string) error {
	return s.stream.WriteAll([]byte(line + "\r\n"))
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
