// Package deliveryapi is the narrow internal HTTP seam the external
// SMTP/LMTP collaborator calls to hand a parsed message to the store
// (spec.md §1: "SMTP delivery is external... they only deliver Mail values
// into the store"). Requests carry a short-lived HS256 JWT minted by that
// external delivery service; this package only verifies the token and
// writes the message, it never parses MIME or resolves routing itself.
package deliveryapi

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"kakimail/internal/store"
)

// Server is the delivery-API HTTP handler, holding the shared Store and the
// HMAC key used to verify inbound tokens.
type Server struct {
	store  *store.Store
	jwtKey []byte
}

// NewServer builds a delivery API bound to st, verifying tokens with key.
func NewServer(st *store.Store, key string) *Server {
	return &Server{store: st, jwtKey: []byte(key)}
}

// deliverRequest is the JSON body POSTed to /deliver.
type deliverRequest struct {
	User       string `json:"user"`       // local username whose INBOX receives the message
	Sender     string `json:"sender"`     // envelope/header From
	Recipients string `json:"recipients"` // envelope To/Cc/Bcc, flattened
	Data       string `json:"data"`       // raw RFC 5322 message bytes
}

type deliverResponse struct {
	UID int64 `json:"uid"`
}

// Handler returns the http.Handler to mount under the delivery API listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/deliver", s.handleDeliver)
	return mux
}

func (s *Server) handleDeliver(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if _, err := s.verifyToken(r); err != nil {
		http.Error(w, "unauthorized: "+err.Error(), http.StatusUnauthorized)
		return
	}

	var req deliverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	if req.User == "" || req.Data == "" {
		http.Error(w, "user and data are required", http.StatusBadRequest)
		return
	}

	userID, ok := s.resolveUserID(req.User)
	if !ok {
		http.Error(w, "unknown user", http.StatusNotFound)
		return
	}

	mailboxID, err := s.store.GetMailboxID(userID, "INBOX")
	if err != nil {
		log.Printf("deliveryapi: resolve INBOX for %s: %v", req.User, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	uid, err := s.store.Replicate(store.Mail{
		Sender:     req.Sender,
		Recipients: req.Recipients,
		Data:       req.Data,
	}, mailboxID, "", time.Now())
	if err != nil {
		log.Printf("deliveryapi: replicate for %s: %v", req.User, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(deliverResponse{UID: uid})
}

// verifyToken checks the Bearer token's HS256 signature and expiry.
func (s *Server) verifyToken(r *http.Request) (*jwt.Token, error) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix {
		return nil, fmt.Errorf("missing bearer token")
	}
	raw := auth[len(prefix):]

	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	return token, nil
}

// resolveUserID is a thin wrapper so delivery can look up a user id without
// a password, unlike IMAP's CheckUser.
func (s *Server) resolveUserID(name string) (int64, bool) {
	return s.store.UserIDByName(name)
}
