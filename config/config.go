// Package config handles all server configuration.
// CLI flags take precedence, then environment variables, then an optional
// YAML config file, then compiled-in defaults.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"

	yaml "gopkg.in/yaml.v2"
)

// Config holds the complete server configuration.
type Config struct {
	// Port is the TCP port the HTTP server listens on.
	Port int
	// DataDir is the directory under which the four category directories,
	// the credential file, and the statistics file are kept.
	DataDir string
	// CredentialFile is the path of the username:hash credential file.
	// Defaults to <DataDir>/.credentials.
	CredentialFile string
	// SessionSecret signs session cookies. When empty a random key is
	// generated at startup and persisted next to the credential file so
	// sessions survive restarts.
	SessionSecret string
	// SessionTTL is how long a login remains valid.
	SessionTTL time.Duration
	// MaxUploadBytes caps the size of a single upload request body.
	MaxUploadBytes int64
	// BandwidthLimit is the total server-wide download cap in bytes per
	// second. 0 means unlimited.
	BandwidthLimit float64
	// Theme is the Chroma syntax-highlighting theme name.
	Theme string
	// Title is the branding name shown in the UI and page titles.
	Title string
	// PreviewDocs controls whether Markdown, Org-mode, and HTML documents
	// are rendered as rich previews. When false they fall back to syntax
	// highlighting.
	PreviewDocs bool
}

// fileConfig mirrors Config for the optional YAML config file.
type fileConfig struct {
	Port           int    `yaml:"port"`
	DataDir        string `yaml:"data_dir"`
	CredentialFile string `yaml:"credential_file"`
	SessionSecret  string `yaml:"session_secret"`
	SessionTTL     string `yaml:"session_ttl"`
	MaxUploadMB    int64  `yaml:"max_upload_mb"`
	Bandwidth      string `yaml:"bandwidth"`
	Theme          string `yaml:"theme"`
	Title          string `yaml:"title"`
	PreviewDocs    string `yaml:"preview_docs"`
}

// Load parses flags, environment variables, and the optional config file,
// returning a validated Config.
func Load() (*Config, error) {
	configFlag    := flag.String("config", "", "Path to a YAML config file (env: VAULT_CONFIG)")
	portFlag      := flag.Int("port", 0, "HTTP port to listen on (env: VAULT_PORT, default: 8000)")
	dataDirFlag   := flag.String("data-dir", "", "Directory holding the category directories (env: VAULT_DATA_DIR, default: ./data)")
	credFlag      := flag.String("credential-file", "", "Path of the credential file (env: VAULT_CREDENTIAL_FILE, default: <data-dir>/.credentials)")
	secretFlag    := flag.String("session-secret", "", "Session cookie signing key (env: VAULT_SESSION_SECRET, default: generated and persisted)")
	ttlFlag       := flag.String("session-ttl", "", "Login lifetime, e.g. 12h, 30m (env: VAULT_SESSION_TTL, default: 12h)")
	maxUploadFlag := flag.Int64("max-upload-mb", 0, "Maximum upload size in MiB (env: VAULT_MAX_UPLOAD_MB, default: 2048)")
	bandwidthFlag := flag.String("bandwidth", "", "Total download bandwidth cap, e.g. 10mbps, 500kbps (env: VAULT_BANDWIDTH, default: unlimited)")
	themeFlag     := flag.String("highlight-theme", "", "Chroma syntax-highlight theme (env: VAULT_HIGHLIGHT_THEME, default: catppuccin-mocha)")
	titleFlag     := flag.String("title", "", "Site branding title (env: VAULT_TITLE, default: MediaVault)")
	previewFlag   := flag.String("preview-docs", "", "Enable rendered document previews: true or false (env: VAULT_PREVIEW_DOCS, default: true)")
	flag.Parse()

	// --- config file ---
	fc := &fileConfig{}
	cfgPath := *configFlag
	if cfgPath == "" {
		cfgPath = os.Getenv("VAULT_CONFIG")
	}
	if cfgPath != "" {
		data, err := os.ReadFile(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("config file %q: %w", cfgPath, err)
		}
		if err := yaml.Unmarshal(data, fc); err != nil {
			return nil, fmt.Errorf("config file %q: %w", cfgPath, err)
		}
	}

	// --- port ---
	port := *portFlag
	if port == 0 {
		if v := os.Getenv("VAULT_PORT"); v != "" {
			p, err := strconv.Atoi(v)
			if err != nil || p < 1 || p > 65535 {
				return nil, fmt.Errorf("invalid VAULT_PORT value %q", v)
			}
			port = p
		} else if fc.Port != 0 {
			port = fc.Port
		} else {
			port = 8000
		}
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("invalid port %d", port)
	}

	// --- data-dir ---
	dataDir := stringChain(*dataDirFlag, "VAULT_DATA_DIR", fc.DataDir, "data")

	// --- credential-file ---
	credFile := stringChain(*credFlag, "VAULT_CREDENTIAL_FILE", fc.CredentialFile, "")

	// --- session-secret ---
	secret := stringChain(*secretFlag, "VAULT_SESSION_SECRET", fc.SessionSecret, "")

	// --- session-ttl ---
	ttlRaw := stringChain(*ttlFlag, "VAULT_SESSION_TTL", fc.SessionTTL, "12h")
	ttl, err := time.ParseDuration(ttlRaw)
	if err != nil || ttl <= 0 {
		return nil, fmt.Errorf("invalid session TTL %q", ttlRaw)
	}

	// --- max-upload-mb ---
	maxMB := *maxUploadFlag
	if maxMB == 0 {
		if v := os.Getenv("VAULT_MAX_UPLOAD_MB"); v != "" {
			m, err := strconv.ParseInt(v, 10, 64)
			if err != nil || m < 1 {
				return nil, fmt.Errorf("invalid VAULT_MAX_UPLOAD_MB value %q", v)
			}
			maxMB = m
		} else if fc.MaxUploadMB != 0 {
			maxMB = fc.MaxUploadMB
		} else {
			maxMB = 2048
		}
	}
	if maxMB < 1 {
		return nil, fmt.Errorf("invalid max upload size %d MiB", maxMB)
	}

	// --- bandwidth ---
	bwRaw := stringChain(*bandwidthFlag, "VAULT_BANDWIDTH", fc.Bandwidth, "")
	var bandwidthBps float64
	if bwRaw != "" {
		bps, err := parseBandwidth(bwRaw)
		if err != nil {
			return nil, fmt.Errorf("invalid bandwidth %q: %w", bwRaw, err)
		}
		bandwidthBps = bps
	}

	// --- highlight-theme ---
	theme := stringChain(*themeFlag, "VAULT_HIGHLIGHT_THEME", fc.Theme, "catppuccin-mocha")

	// --- title ---
	title := stringChain(*titleFlag, "VAULT_TITLE", fc.Title, "MediaVault")

	// --- preview-docs ---
	previewDocs := parseBoolFlag(*previewFlag, "VAULT_PREVIEW_DOCS", fc.PreviewDocs, true)

	return &Config{
		Port:           port,
		DataDir:        dataDir,
		CredentialFile: credFile,
		SessionSecret:  secret,
		SessionTTL:     ttl,
		MaxUploadBytes: maxMB * 1024 * 1024,
		BandwidthLimit: bandwidthBps,
		Theme:          theme,
		Title:          title,
		PreviewDocs:    previewDocs,
	}, nil
}

// stringChain resolves a string option: flag > env > config file > default.
func stringChain(flagVal, envKey, fileVal, defaultVal string) string {
	if flagVal != "" {
		return flagVal
	}
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	if fileVal != "" {
		return fileVal
	}
	return defaultVal
}

// parseBoolFlag resolves a boolean option from a CLI string flag value, with
// fallback to an environment variable, the config file, and then a
// compile-time default.
// Accepted truthy strings: "1", "t", "true", "yes", "on".
// Accepted falsy strings:  "0", "f", "false", "no", "off".
// An empty string means "not set"; the next source in the chain is tried.
func parseBoolFlag(flagVal, envKey, fileVal string, defaultVal bool) bool {
	if flagVal != "" {
		if b, ok := parseBoolString(flagVal); ok {
			return b
		}
	}
	if v := os.Getenv(envKey); v != "" {
		if b, ok := parseBoolString(v); ok {
			return b
		}
	}
	if fileVal != "" {
		if b, ok := parseBoolString(fileVal); ok {
			return b
		}
	}
	return defaultVal
}

// parseBoolString converts a human-readable boolean string to a bool.
func parseBoolString(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "yes", "on":
		return true, true
	case "0", "f", "false", "no", "off":
		return false, true
	}
	return false, false
}

// parseBandwidth converts a human-readable bandwidth string to bytes per
// second. Accepted units (case-insensitive): bps, kbps, mbps, gbps.
// A bare number is treated as bits per second.
//
// Examples: "10mbps", "500 kbps", "1gbps", "131072"
func parseBandwidth(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}

	// Split into numeric prefix and unit suffix.
	i := 0
	for i < len(s) && (s[i] == '.' || (s[i] >= '0' && s[i] <= '9')) {
		i++
	}
	if i == 0 {
		return 0, fmt.Errorf("no numeric value found")
	}
	numStr := s[:i]
	unit := strings.ToLower(strings.TrimFunc(s[i:], unicode.IsSpace))

	val, err := strconv.ParseFloat(numStr, 64)
	if err != nil || val < 0 {
		return 0, fmt.Errorf("invalid number %q", numStr)
	}

	// Convert bits/sec units to bytes/sec.
	switch unit {
	case "", "bps":
		return val / 8, nil
	case "kbps":
		return val * 1_000 / 8, nil
	case "mbps":
		return val * 1_000_000 / 8, nil
	case "gbps":
		return val * 1_000_000_000 / 8, nil
	default:
		return 0, fmt.Errorf("unknown unit %q (accepted: bps, kbps, mbps, gbps)", unit)
	}
}
