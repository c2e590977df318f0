package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"mediavault/vault"
)

// Gate is the admission middleware evaluated before any other handler.
//
// Three states, checked per request and per caller:
//
//   - no credentials persisted yet → only the setup flow is reachable,
//     everything else is sent there;
//   - credentials exist, caller not logged in → only login and static
//     assets are reachable, everything else is sent to login;
//   - caller logged in → full access.
//
// The process-wide half of the state (does a credential exist?) is read from
// the CredentialStore on every request, so a freshly completed bootstrap
// takes effect immediately without restart.
type Gate struct {
	creds    *vault.CredentialStore
	sessions *SessionManager
}

// NewGate builds the admission middleware over creds and sessions.
func NewGate(creds *vault.CredentialStore, sessions *SessionManager) *Gate {
	return &Gate{creds: creds, sessions: sessions}
}

// Admit wraps next with the admission state machine.
func (g *Gate) Admit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		// Static assets and the session probe are reachable in every state:
		// the login and setup pages need their stylesheets, and the frontend
		// polls /api/session to decide which page to show.
		if isStaticPath(path) || path == "/api/session" {
			next.ServeHTTP(w, r)
			return
		}

		if !g.creds.Exists() {
			if path == "/setup" {
				next.ServeHTTP(w, r)
				return
			}
			deny(w, r, "/setup", "setup required")
			return
		}

		if g.sessions.Current(r).LoggedIn {
			// Bootstrap is a one-shot flow; once credentials exist the
			// setup page just points home.
			if path == "/setup" {
				http.Redirect(w, r, "/", http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		switch path {
		case "/login":
			next.ServeHTTP(w, r)
		case "/setup":
			http.Redirect(w, r, "/login", http.StatusSeeOther)
		default:
			deny(w, r, "/login", "authentication required")
		}
	})
}

// deny routes a rejected request to the right flow: browsers get a redirect,
// API calls get a JSON 401 so frontend fetch code sees a clean error instead
// of an HTML login page.
func deny(w http.ResponseWriter, r *http.Request, location, reason string) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": reason})
		return
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

// isStaticPath reports whether path serves a static asset.
func isStaticPath(path string) bool {
	return strings.HasPrefix(path, "/static/") ||
		path == "/highlight.css" ||
		path == "/favicon.ico"
}
