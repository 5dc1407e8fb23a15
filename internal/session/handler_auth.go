package session

import (
	"encoding/base64"
	"strings"

	"kakimail/internal/imapparser"
)

// handleCapability replies with the fixed capability line spec.md §6 pins
// byte-exact.
func handleCapability(sess *Session, tag string, _ bool, _ []imapparser.Node, _ string) ([]string, State, Action) {
	return []string{
		"* CAPABILITY IMAP4rev2 STARTTLS IMAP4rev1 AUTH=PLAIN",
		tagged(tag, "OK", "CAPABILITY completed"),
	}, sess.state, ActionNone
}

func handleNoop(sess *Session, tag string, _ bool, _ []imapparser.Node, _ string) ([]string, State, Action) {
	return []string{tagged(tag, "OK", "NOOP completed")}, sess.state, ActionNone
}

func handleLogout(sess *Session, tag string, _ bool, _ []imapparser.Node, _ string) ([]string, State, Action) {
	next := sess.state
	next.Kind = Logout
	return []string{
		"* BYE IMAP4rev2 Server logging out",
		tagged(tag, "OK", "LOGOUT completed"),
	}, next, ActionLogout
}

// handleStartTLS is valid in any state but only while the transport is
// still plain; on an already-upgraded stream it replies OK without
// re-negotiating (spec.md §8: "STARTTLS on an already-upgraded session is
// idempotent").
func handleStartTLS(sess *Session, tag string, _ bool, _ []imapparser.Node, _ string) ([]string, State, Action) {
	if sess.stream.IsTLS() {
		return []string{tagged(tag, "OK", "Begin TLS negotiation now")}, sess.state, ActionNone
	}
	return []string{tagged(tag, "OK", "Begin TLS negotiation now")}, sess.state, ActionPromoteToTLS
}

// handleLogin implements LOGIN "<user>" "<pass>" (spec.md §6 credentials).
func handleLogin(sess *Session, tag string, _ bool, args []imapparser.Node, _ string) ([]string, State, Action) {
	if len(args) != 2 {
		return []string{tagged(tag, "BAD", "LOGIN requires a username and password")}, sess.state, ActionNone
	}
	user, ok1 := imapparser.AtomOrQuoted(args[0])
	pass, ok2 := imapparser.AtomOrQuoted(args[1])
	if !ok1 || !ok2 {
		return []string{tagged(tag, "BAD", "LOGIN requires string arguments")}, sess.state, ActionNone
	}
	return finishAuth(sess, tag, user, pass)
}

// handleAuthenticate implements AUTHENTICATE PLAIN with a SASL
// continuation round-trip (spec.md §4.C post-action RedoForNextMsg) or
// AUTHENTICATE PLAIN <initial-response> inline (RFC 4959 SASL-IR shape,
// which the teacher's own flow already reads back as one extra line when
// absent).
func handleAuthenticate(sess *Session, tag string, _ bool, args []imapparser.Node, cont string) ([]string, State, Action) {
	if len(args) < 1 {
		return []string{tagged(tag, "BAD", "AUTHENTICATE requires a mechanism")}, sess.state, ActionNone
	}
	mech, ok := imapparser.AtomOrQuoted(args[0])
	if !ok || !strings.EqualFold(mech, "PLAIN") {
		return []string{tagged(tag, "BAD", "Unsupported Authentication Mechanism")}, sess.state, ActionNone
	}

	if cont == "" && len(args) < 2 {
		// No initial response: prompt for one (spec.md §4.C "RedoForNextMsg:
		// the command expects a continuation").
		return []string{"+ "}, sess.state, ActionRedo
	}

	payload := cont
	if payload == "" {
		payload, _ = imapparser.AtomOrQuoted(args[1])
	}
	payload = strings.TrimSpace(payload)
	if payload == "*" {
		return []string{tagged(tag, "BAD", "Authentication exchange cancelled")}, sess.state, ActionNone
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return []string{tagged(tag, "NO", "Invalid SASL PLAIN response")}, sess.state, ActionNone
	}
	parts := strings.SplitN(string(raw), "\x00", 3)
	if len(parts) != 3 {
		return []string{tagged(tag, "NO", "Invalid SASL PLAIN response")}, sess.state, ActionNone
	}
	return finishAuth(sess, tag, parts[1], parts[2])
}

func finishAuth(sess *Session, tag, user, pass string) ([]string, State, Action) {
	uid, ok := sess.deps.Store.CheckUser(user, pass)
	if !ok {
		return []string{tagged(tag, "NO", "LOGIN failed")}, sess.state, ActionNone
	}
	next := sess.state
	next.Kind = Authed
	next.UserID = uid
	next.Username = user
	return []string{tagged(tag, "OK", "LOGIN COMPLETED")}, next, ActionNone
}
