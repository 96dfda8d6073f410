// Package session derives the local identity from the credential issued by POST /login.
//
// The credential is only decoded, never verified: the claims are a display hint and the
// identity the client uses to recognise its own frames. Anything privileged is authorized by
// the server, which validates the same token on the websocket handshake.
package session

import (
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

// Claims are the claims the server puts in the credential
type Claims struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	SessionID string `json:"sessionId"`
	jwt.RegisteredClaims
}

// Session is the identity derived from a credential
type Session struct {
	UserID    string
	Username  string
	SessionID string
}

// Decode extracts the session from a credential. A malformed or empty credential, or one
// without a user id, yields nil.
func Decode(token string) *Session {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}

	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		log.Debug().Err(err).Msg("credential could not be decoded")
		return nil
	}
	if claims.UserID == "" {
		return nil
	}

	return &Session{
		UserID:    claims.UserID,
		Username:  claims.Username,
		SessionID: claims.SessionID,
	}
}

// Holder keeps the current credential and the session derived from it
type Holder struct {
	mu      sync.RWMutex
	token   string
	session *Session
}

// NewHolder creates an empty (logged out) holder
func NewHolder() *Holder {
	return &Holder{}
}

// SetToken replaces the credential and re-derives the session. A credential that does not
// decode leaves the holder logged out and reports false.
func (h *Holder) SetToken(token string) bool {
	s := Decode(token)

	h.mu.Lock()
	defer h.mu.Unlock()

	if s == nil {
		h.token = ""
		h.session = nil
		return false
	}
	h.token = token
	h.session = s
	return true
}

// Clear logs out
func (h *Holder) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = ""
	h.session = nil
}

// Token returns the current credential, empty when logged out
func (h *Holder) Token() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token
}

// Session returns a copy of the current session, nil when logged out
func (h *Holder) Session() *Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.session == nil {
		return nil
	}
	s := *h.session
	return &s
}

// UserID returns the local user id, empty when logged out
func (h *Holder) UserID() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.session == nil {
		return ""
	}
	return h.session.UserID
}
