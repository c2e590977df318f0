// Package handlers contains all HTTP handler functions and the session gate.
package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/sessions"

	"mediavault/models"
)

const (
	sessionName = "vault_session"

	sessionKeyLoggedIn = "loggedIn"
	sessionKeyUsername = "username"
)

// SessionManager wraps a cookie-backed session store. The session carries
// exactly two values — loggedIn and username — which is all the gate reads
// to decide admission.
type SessionManager struct {
	store *sessions.CookieStore
}

// NewSessionManager builds a cookie store signed with secret. ttl bounds the
// cookie lifetime; the gate imposes no expiry of its own beyond it.
//
// Secure is left off: the vault's deployment target is plain HTTP on a
// trusted local network, and a Secure cookie would never be sent back.
func NewSessionManager(secret []byte, ttl time.Duration) *SessionManager {
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return &SessionManager{store: store}
}

// Current returns the caller's session state. Decoding failures (tampered or
// stale cookies) read as logged out.
func (m *SessionManager) Current(r *http.Request) models.SessionInfo {
	sess, err := m.store.Get(r, sessionName)
	if err != nil {
		return models.SessionInfo{}
	}
	loggedIn, _ := sess.Values[sessionKeyLoggedIn].(bool)
	username, _ := sess.Values[sessionKeyUsername].(string)
	if !loggedIn {
		return models.SessionInfo{}
	}
	return models.SessionInfo{LoggedIn: true, Username: username}
}

// Login marks the caller's session as authenticated for username.
func (m *SessionManager) Login(w http.ResponseWriter, r *http.Request, username string) error {
	sess, _ := m.store.Get(r, sessionName)
	sess.Values[sessionKeyLoggedIn] = true
	sess.Values[sessionKeyUsername] = username
	return sess.Save(r, w)
}

// Logout clears the caller's session.
func (m *SessionManager) Logout(w http.ResponseWriter, r *http.Request) error {
	sess, _ := m.store.Get(r, sessionName)
	sess.Values[sessionKeyLoggedIn] = false
	delete(sess.Values, sessionKeyUsername)
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}
