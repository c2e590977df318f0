package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"mediavault/models"
	"mediavault/vault"
)

// AuthPages renders the login and setup forms.
type AuthPages interface {
	ExecuteLogin(w http.ResponseWriter, data *models.AuthPageData) error
	ExecuteSetup(w http.ResponseWriter, data *models.AuthPageData) error
}

// SetupPage serves the first-run bootstrap form.
func SetupPage(siteName string, tmpl AuthPages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := &models.AuthPageData{Title: "Setup", SiteName: siteName, Error: r.URL.Query().Get("error")}
		if err := tmpl.ExecuteSetup(w, data); err != nil {
			http.Error(w, "Template error", http.StatusInternalServerError)
		}
	}
}

// SetupSubmit handles the bootstrap form POST. On success the process moves
// from the no-credentials state to unauthenticated, and the caller is sent
// to the login page; on failure back to the form with a message.
func SetupSubmit(creds *vault.CredentialStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := r.PostFormValue("username")
		password := r.PostFormValue("password")
		confirm := r.PostFormValue("confirm")

		if password != confirm {
			http.Redirect(w, r, "/setup?error=Passwords+do+not+match", http.StatusSeeOther)
			return
		}

		err := creds.Bootstrap(username, password)
		switch {
		case err == nil:
			log.Printf("auth  bootstrap  user=%s", username)
			http.Redirect(w, r, "/login", http.StatusSeeOther)
		case errors.Is(err, vault.ErrAlreadyInitialized):
			http.Redirect(w, r, "/login", http.StatusSeeOther)
		case errors.Is(err, vault.ErrInvalidInput):
			http.Redirect(w, r, "/setup?error=Username+and+password+are+required", http.StatusSeeOther)
		default:
			log.Printf("auth  bootstrap failed: %v", err)
			http.Redirect(w, r, "/setup?error=Could+not+save+credentials", http.StatusSeeOther)
		}
	}
}

// LoginPage serves the login form.
func LoginPage(siteName string, tmpl AuthPages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := &models.AuthPageData{Title: "Login", SiteName: siteName, Error: r.URL.Query().Get("error")}
		if err := tmpl.ExecuteLogin(w, data); err != nil {
			http.Error(w, "Template error", http.StatusInternalServerError)
		}
	}
}

// LoginSubmit handles the login form POST: verify against the credential
// store, mark the session, redirect either way.
func LoginSubmit(creds *vault.CredentialStore, sessions *SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := r.PostFormValue("username")
		password := r.PostFormValue("password")

		if !creds.Verify(username, password) {
			log.Printf("auth  login denied  ip=%-15s  user=%s", clientIP(r), username)
			http.Redirect(w, r, "/login?error=Invalid+username+or+password", http.StatusSeeOther)
			return
		}

		if err := sessions.Login(w, r, username); err != nil {
			http.Error(w, "Could not create session", http.StatusInternalServerError)
			return
		}
		log.Printf("auth  login ok     ip=%-15s  user=%s", clientIP(r), username)
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

// Logout clears the session and returns to the login page.
func Logout(sessions *SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := sessions.Logout(w, r); err != nil {
			http.Error(w, "Could not clear session", http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	}
}

// SessionCheck reports the caller's session state as JSON. Reachable in
// every gate state so the frontend can decide which page to show.
func SessionCheck(sessions *SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(sessions.Current(r))
	}
}

// passwordChangeRequest is the JSON body of the password-rotation endpoint.
type passwordChangeRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// PasswordChange rotates the admin password. The caller must supply the
// current password even though the session is already authenticated.
func PasswordChange(creds *vault.CredentialStore, sessions *SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req passwordChangeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonError(w, http.StatusBadRequest, "bad request")
			return
		}

		username := sessions.Current(r).Username
		if !creds.Verify(username, req.CurrentPassword) {
			jsonError(w, http.StatusForbidden, "current password is incorrect")
			return
		}

		err := creds.Rotate(username, req.NewPassword)
		switch {
		case err == nil:
			log.Printf("auth  password rotated  user=%s", username)
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]bool{"success": true})
		case errors.Is(err, vault.ErrInvalidInput):
			jsonError(w, http.StatusBadRequest, "new password must not be empty")
		case errors.Is(err, vault.ErrUserNotFound):
			jsonError(w, http.StatusBadRequest, "unknown user")
		default:
			log.Printf("auth  password rotation failed: %v", err)
			jsonError(w, http.StatusInternalServerError, "could not save credentials")
		}
	}
}

// jsonError writes a JSON error body with the given status.
func jsonError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
