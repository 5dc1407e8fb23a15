package deliveryapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"kakimail/internal/store"
)

const testJWTKey = "test-signing-key"

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func signedToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Minute).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTKey))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestHandleDeliverSuccess(t *testing.T) {
	st := newTestStore(t)
	uid, ok := st.CreateUser("alice", "unused-hash")
	if !ok {
		t.Fatalf("create user failed")
	}

	srv := NewServer(st, testJWTKey)

	body, _ := json.Marshal(deliverRequest{
		User:       "alice",
		Sender:     "bob@example.com",
		Recipients: "alice@example.com",
		Data:       "Subject: hi\r\n\r\nHello world!",
	})
	req := httptest.NewRequest(http.MethodPost, "/deliver", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+signedToken(t))
	rr := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp deliverResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.UID == 0 {
		t.Fatalf("expected a nonzero UID")
	}

	mbox, err := st.GetMailboxID(uid, "INBOX")
	if err != nil {
		t.Fatalf("get mailbox: %v", err)
	}
	count, err := st.MailCount(&mbox)
	if err != nil {
		t.Fatalf("mail count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 delivered message, got %d", count)
	}
}

func TestHandleDeliverRejectsMissingToken(t *testing.T) {
	st := newTestStore(t)
	srv := NewServer(st, testJWTKey)

	req := httptest.NewRequest(http.MethodPost, "/deliver", bytes.NewReader([]byte(`{}`)))
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestHandleDeliverRejectsWrongSigningKey(t *testing.T) {
	st := newTestStore(t)
	srv := NewServer(st, testJWTKey)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{})
	signed, err := token.SignedString([]byte("wrong-key"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/deliver", bytes.NewReader([]byte(`{"user":"alice","data":"x"}`)))
	req.Header.Set("Authorization", "Bearer "+signed)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong signing key, got %d", rr.Code)
	}
}

func TestHandleDeliverRejectsUnknownUser(t *testing.T) {
	st := newTestStore(t)
	srv := NewServer(st, testJWTKey)

	body, _ := json.Marshal(deliverRequest{User: "ghost", Data: "x"})
	req := httptest.NewRequest(http.MethodPost, "/deliver", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+signedToken(t))
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown user, got %d", rr.Code)
	}
}

func TestHandleDeliverRejectsNonPost(t *testing.T) {
	st := newTestStore(t)
	srv := NewServer(st, testJWTKey)

	req := httptest.NewRequest(http.MethodGet, "/deliver", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}
