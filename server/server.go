package server

import (
	"bufio"
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/securecookie"

	"mediavault/config"
	"mediavault/handlers"
	"mediavault/vault"
)

// staticFS holds the embedded static assets.
var staticFS embed.FS

// SetStaticFS is called from main to inject the embedded FS.
func SetStaticFS(efs embed.FS) {
	staticFS = efs
}

// staticHandler returns an http.Handler that serves files from the embedded
// static/ subtree.
func staticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		log.Fatalf("static sub fs: %v", err)
	}
	return http.FileServer(http.FS(sub))
}

// Run builds every component from the configuration, starts the HTTP server,
// and blocks until a shutdown is requested via signal, the console "stop"
// command, or the /shutdown endpoint. It returns once the server has drained.
func Run(cfg *config.Config, templateFS embed.FS) error {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("data dir %q: %w", cfg.DataDir, err)
	}

	credFile := cfg.CredentialFile
	if credFile == "" {
		credFile = filepath.Join(cfg.DataDir, ".credentials")
	}
	creds := vault.NewCredentialStore(credFile)

	policy := vault.NewPolicy(cfg.DataDir)
	for _, c := range vault.Categories() {
		if _, err := policy.EnsureRoot(c); err != nil {
			return fmt.Errorf("category root %s: %w", c, err)
		}
	}

	stats := vault.OpenStats(filepath.Join(cfg.DataDir, "vault.json"))
	ingestor := vault.NewIngestor(policy, stats)

	secret, err := sessionSecret(cfg, filepath.Join(cfg.DataDir, ".session_secret"))
	if err != nil {
		return fmt.Errorf("session secret: %w", err)
	}
	sessionMgr := handlers.NewSessionManager(secret, cfg.SessionTTL)
	gate := handlers.NewGate(creds, sessionMgr)

	tmpl, err := LoadTemplates(templateFS)
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}

	// Configure the document renderer with the active Chroma theme. Must be
	// called before any preview request is served.
	handlers.InitRenderOptions(cfg.Theme)

	listings := handlers.NewListings(policy)
	throttle := handlers.NewThrottle(cfg.BandwidthLimit)

	// Shutdown can be requested from three places; fire exactly once.
	shutdownCh := make(chan struct{})
	var once sync.Once
	shutdown := func() { once.Do(func() { close(shutdownCh) }) }

	svc := &services{
		creds:    creds,
		sessions: sessionMgr,
		policy:   policy,
		stats:    stats,
		ingestor: ingestor,
		listings: listings,
		throttle: throttle,
		tmpl:     tmpl,
	}
	router := mux.NewRouter()
	registerRoutes(router, svc, cfg, shutdown)
	handler := securityHeaders(gate.Admit(router))

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	logStartup(cfg, creds, addr)

	// Warm the listing caches in the background so the first page load is
	// never a cold cache miss.
	listings.Warm()

	// Watch the category roots for filesystem changes and invalidate only
	// the affected cache entries.
	stopWatcher, err := handlers.StartWatcher(policy, listings)
	if err != nil {
		log.Printf("watcher: could not start filesystem watcher: %v", err)
		stopWatcher = func() {}
	}
	defer stopWatcher()

	srv := &http.Server{
		Addr:    addr,
		Handler: handler,

		// ReadHeaderTimeout caps how long the server waits for a client to
		// finish sending HTTP headers. This is the primary Slowloris defence.
		ReadHeaderTimeout: 20 * time.Second,

		// IdleTimeout closes keep-alive connections that have been idle for
		// this duration, reclaiming goroutines and file descriptors.
		IdleTimeout: 120 * time.Second,

		// WriteTimeout is intentionally absent. File downloads and ZIP
		// streams can legitimately take hours for large transfers; a write
		// deadline would terminate in-progress downloads. The bandwidth
		// limiter already bounds what a slow reader can hold open, and
		// IdleTimeout handles truly dead connections.
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Console loop: a blocking stdin reader so "stop" at the terminal shuts
	// the server down, same as Ctrl-C or POST /shutdown.
	go consoleLoop(shutdown)

	ctx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Println("signal received, shutting down")
	case <-shutdownCh:
		log.Println("shutdown requested")
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(drainCtx)
}

// consoleLoop reads commands from stdin until EOF. Only "stop" (and "quit"/
// "exit") are recognised; anything else prints a hint.
func consoleLoop(shutdown func()) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "":
		case "stop", "quit", "exit":
			shutdown()
			return
		default:
			fmt.Println(`type "stop" to shut down`)
		}
	}
}

// sessionSecret resolves the cookie signing key: the configured value when
// set, otherwise a persisted random key generated on first start so sessions
// survive restarts.
func sessionSecret(cfg *config.Config, path string) ([]byte, error) {
	if cfg.SessionSecret != "" {
		return []byte(cfg.SessionSecret), nil
	}
	if data, err := os.ReadFile(path); err == nil && len(data) >= 32 {
		return data, nil
	}
	key := securecookie.GenerateRandomKey(32)
	if key == nil {
		return nil, fmt.Errorf("could not generate random key")
	}
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return nil, err
	}
	return key, nil
}

// logStartup prints a structured summary of the active configuration.
func logStartup(cfg *config.Config, creds *vault.CredentialStore, addr string) {
	sep := "-------------------------------------------"
	log.Println(sep)
	log.Printf("  %s", cfg.Title)
	log.Println(sep)
	log.Printf("  %-18s http://localhost:%d", "Local:", cfg.Port)
	if ip := localIP(); ip != "" {
		log.Printf("  %-18s http://%s:%d", "Network:", ip, cfg.Port)
	}
	log.Printf("  %-18s %s", "Data directory:", cfg.DataDir)
	log.Printf("  %-18s %s", "Highlight theme:", cfg.Theme)

	if cfg.BandwidthLimit > 0 {
		log.Printf("  %-18s %s", "Bandwidth limit:", formatBandwidth(cfg.BandwidthLimit))
	} else {
		log.Printf("  %-18s %s", "Bandwidth limit:", "unlimited")
	}
	log.Printf("  %-18s %s", "Max upload:", humanSize(cfg.MaxUploadBytes))

	if creds.Exists() {
		if user, err := creds.Username(); err == nil {
			log.Printf("  %-18s %s", "Admin:", user)
		} else {
			log.Printf("  %-18s credential file unreadable: %v", "Admin:", err)
		}
	} else {
		log.Printf("  %-18s not configured, visit /setup", "Admin:")
	}
	log.Println(sep)
	log.Println(`type "stop" to shut down`)
}

// formatBandwidth converts a bytes/sec value to a human-readable bits/sec
// string.
func formatBandwidth(bps float64) string {
	bits := bps * 8
	switch {
	case bits >= 1_000_000_000:
		return fmt.Sprintf("%.2f Gbps", bits/1_000_000_000)
	case bits >= 1_000_000:
		return fmt.Sprintf("%.2f Mbps", bits/1_000_000)
	case bits >= 1_000:
		return fmt.Sprintf("%.2f Kbps", bits/1_000)
	default:
		return fmt.Sprintf("%.0f bps", bits)
	}
}
