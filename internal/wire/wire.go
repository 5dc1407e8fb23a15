// Package wire implements the transport abstraction the IMAP session reads
// and writes through: a byte-oriented stream that starts out plain TCP and
// can be upgraded in place to TLS after a STARTTLS reply, without the
// session ever needing to know which kind of socket it currently holds.
package wire

import (
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"
)

// Stream wraps a net.Conn, hiding whether it is currently plain or TLS.
// Session code reads and writes through Stream only; framing (lines,
// literals) is the session's responsibility, not this package's.
type Stream struct {
	mu   sync.Mutex
	conn net.Conn
	tls  bool
}

// New wraps a freshly accepted connection. isTLS should be true when conn
// was produced by an implicit-TLS listener (port 993).
func New(conn net.Conn, isTLS bool) *Stream {
	return &Stream{conn: conn, tls: isTLS}
}

func (s *Stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	return conn.Read(p)
}

// WriteAll writes p in full, returning an error if the underlying write
// fails or is short (net.Conn.Write never returns a short write without an
// error, but we guard anyway since the contract promises "all or error").
func (s *Stream) WriteAll(p []byte) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	for written := 0; written < len(p); {
		n, err := conn.Write(p[written:])
		if err != nil {
			return err
		}
		written += n
	}
	return nil
}

// IsTLS reports whether the stream currently rides over TLS.
func (s *Stream) IsTLS() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tls
}

// UpgradeToTLS performs an in-place STARTTLS upgrade: the caller must have
// already written the "<tag> OK Begin TLS negotiation now" reply before
// calling this, since after it returns all subsequent reads/writes are
// TLS-framed. Calling it on an already-TLS stream is a no-op; logf receives
// a warning in that case rather than the function erroring, matching the
// STARTTLS idempotence invariant (spec.md "STARTTLS on an already-upgraded
// session is idempotent").
func (s *Stream) UpgradeToTLS(cfg *tls.Config, logf func(format string, v ...interface{})) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tls {
		if logf != nil {
			logf("wire: UpgradeToTLS called on a stream already running TLS, ignoring")
		}
		return nil
	}

	tlsConn := tls.Server(s.conn, cfg)
	if err := tlsConn.Handshake(); err != nil {
		return fmt.Errorf("wire: TLS handshake failed: %w", err)
	}
	s.conn = tlsConn
	s.tls = true
	return nil
}

func (s *Stream) SetReadDeadline(t time.Time) error {
	return s.Conn().SetReadDeadline(t)
}

func (s *Stream) Conn() net.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

func (s *Stream) RemoteAddr() net.Addr {
	return s.Conn().RemoteAddr()
}

func (s *Stream) Close() error {
	return s.Conn().Close()
}
