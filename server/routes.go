package server

import (
	"net/http"

	"github.com/gorilla/mux"

	"mediavault/config"
	"mediavault/handlers"
	"mediavault/vault"
)

// services bundles the long-lived objects the route table wires together.
type services struct {
	creds    *vault.CredentialStore
	sessions *handlers.SessionManager
	policy   *vault.Policy
	stats    *vault.Stats
	ingestor *vault.Ingestor
	listings *handlers.Listings
	throttle *handlers.Throttle
	tmpl     *Templates
}

// registerRoutes attaches all handlers to the given router. shutdown is
// invoked by the /shutdown endpoint to trigger a graceful stop.
func registerRoutes(r *mux.Router, svc *services, cfg *config.Config, shutdown func()) {
	// Static assets
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", staticHandler()))

	// Chroma syntax-highlighting stylesheet (generated once at startup)
	r.HandleFunc("/highlight.css", handlers.HighlightCSSHandler(cfg.Theme)).Methods(http.MethodGet)

	// First-run bootstrap and login flows
	r.HandleFunc("/setup", handlers.SetupPage(cfg.Title, svc.tmpl)).Methods(http.MethodGet)
	r.HandleFunc("/setup", handlers.SetupSubmit(svc.creds)).Methods(http.MethodPost)
	r.HandleFunc("/login", handlers.LoginPage(cfg.Title, svc.tmpl)).Methods(http.MethodGet)
	r.HandleFunc("/login", handlers.LoginSubmit(svc.creds, svc.sessions)).Methods(http.MethodPost)
	r.HandleFunc("/logout", handlers.Logout(svc.sessions)).Methods(http.MethodGet, http.MethodPost)

	// Session and credential API
	r.HandleFunc("/api/session", handlers.SessionCheck(svc.sessions)).Methods(http.MethodGet)
	r.HandleFunc("/api/password", handlers.PasswordChange(svc.creds, svc.sessions)).Methods(http.MethodPost)

	// Category listings. The video endpoint is pluralised for compatibility
	// with the frontend contract.
	r.HandleFunc("/api/videos", handlers.ListCategory(svc.listings, vault.CategoryVideo)).Methods(http.MethodGet)
	r.HandleFunc("/api/audio", handlers.ListCategory(svc.listings, vault.CategoryAudio)).Methods(http.MethodGet)
	r.HandleFunc("/api/gallery", handlers.ListCategory(svc.listings, vault.CategoryGallery)).Methods(http.MethodGet)
	r.HandleFunc("/api/documents", handlers.ListCategory(svc.listings, vault.CategoryDocuments)).Methods(http.MethodGet)

	// Uploads
	r.HandleFunc("/api/upload/{category}", handlers.Upload(svc.ingestor, svc.listings, cfg.MaxUploadBytes)).Methods(http.MethodPost)

	// Transfer statistics
	r.HandleFunc("/api/stats", handlers.StatsHandler(svc.stats)).Methods(http.MethodGet)

	// Raw file serving and explicit downloads, per category root
	// (bandwidth-limited, counted in stats).
	for _, c := range vault.Categories() {
		prefix := svc.policy.URLPrefix(c)
		r.PathPrefix(prefix + "/").Handler(svc.throttle.Wrap(handlers.Media(svc.policy, c, svc.stats))).Methods(http.MethodGet)
		r.PathPrefix("/download" + prefix + "/").Handler(
			http.StripPrefix("/download", svc.throttle.Wrap(handlers.Download(svc.policy, c, svc.stats))),
		).Methods(http.MethodGet)
	}

	// Whole-category ZIP download (bandwidth-limited)
	r.Handle("/zip/{category}", svc.throttle.Wrap(handlers.ZipCategory(svc.policy, svc.stats))).Methods(http.MethodGet)

	// File previews
	r.HandleFunc("/preview/{category}/{file}", handlers.Preview(svc.policy, cfg.Theme, cfg.Title, cfg.PreviewDocs, svc.tmpl)).Methods(http.MethodGet)

	// Remote shutdown, mirrored by the console "stop" command
	r.HandleFunc("/shutdown", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("shutting down\n"))
		shutdown()
	}).Methods(http.MethodPost)

	// Home page (category index)
	r.HandleFunc("/", handlers.Home(svc.policy, svc.listings, svc.sessions, cfg.Title, svc.tmpl)).Methods(http.MethodGet)
}

// securityHeaders sets conservative response headers on every request.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "SAMEORIGIN")
		h.Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}
