package session

import (
	"net"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"kakimail/internal/store"
	"kakimail/internal/wire"
)

// newTestStore opens an in-memory store the same way internal/store's own
// tests do, so handler tests exercise the real schema instead of a fake.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestUser(t *testing.T, s *store.Store, name, password string) int64 {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	uid, ok := s.CreateUser(name, string(hash))
	if !ok {
		t.Fatalf("create user %s failed", name)
	}
	return uid
}

// newTestSession builds a Session wired to an in-memory store and a
// net.Pipe-backed wire.Stream, so handlers that touch sess.stream (such as
// STARTTLS) have something real to call.
func newTestSession(t *testing.T, st *store.Store, kind Kind) *Session {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })

	sess := New(wire.New(server, false), Deps{Store: st})
	sess.state.Kind = kind
	return sess
}

func mustReplicate(t *testing.T, st *store.Store, mailboxID int64, data string) int64 {
	t.Helper()
	uid, err := st.Replicate(store.Mail{Sender: "bob@example.com", Recipients: "alice@example.com", Data: data}, mailboxID, "00000", time.Time{})
	if err != nil {
		t.Fatalf("replicate: %v", err)
	}
	return uid
}
