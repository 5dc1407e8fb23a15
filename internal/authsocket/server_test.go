package authsocket

import (
	"bufio"
	"net"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"kakimail/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func startTestServer(t *testing.T, st *store.Store) *Server {
	t.Helper()
	sockPath := filepath.Join(t.TempDir(), "auth.sock")
	srv := NewServer(sockPath, st)
	started := make(chan struct{})
	go func() {
		close(started)
		_ = srv.Start()
	}()
	<-started
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if conn, err := net.Dial("unix", sockPath); err == nil {
			conn.Close()
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Cleanup(func() { srv.Shutdown() })
	return srv
}

func TestAuthsocketCheckSuccessAndFailure(t *testing.T) {
	st := newTestStore(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	uid, ok := st.CreateUser("alice", string(hash))
	if !ok {
		t.Fatalf("create user failed")
	}

	srv := startTestServer(t, st)
	conn, err := net.Dial("unix", srv.socketPath)
	if err != nil {
		t.Fatalf("dial socket: %v", err)
	}
	defer conn.Close()

	reader := bufio.NewReader(conn)

	if _, err := conn.Write([]byte("CHECK\talice\thunter2\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := "OK\t" + strconv.FormatInt(uid, 10) + "\n"
	if line != want {
		t.Fatalf("expected %q, got %q", want, line)
	}

	if _, err := conn.Write([]byte("CHECK\talice\twrongpass\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	line, err = reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if line != "FAIL\n" {
		t.Fatalf("expected FAIL, got %q", line)
	}
}

func TestAuthsocketMalformedRequest(t *testing.T) {
	st := newTestStore(t)
	srv := startTestServer(t, st)
	conn, err := net.Dial("unix", srv.socketPath)
	if err != nil {
		t.Fatalf("dial socket: %v", err)
	}
	defer conn.Close()

	reader := bufio.NewReader(conn)
	if _, err := conn.Write([]byte("GARBAGE\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if line != "FAIL\n" {
		t.Fatalf("expected FAIL for malformed request, got %q", line)
	}
}

