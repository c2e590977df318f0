package vault

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// CredentialStore owns the single persisted admin identity. The on-disk
// format is one line, "username:hash", where hash is a bcrypt hash. Parsing
// splits on the first colon only — the username may not contain a colon, but
// the hash encoding is free to.
//
// Bootstrap and Rotate are rare administrative operations; the store favours
// durability over throughput. Every write goes through a temp file and a
// rename so a crash mid-write can never corrupt the only credential on disk.
type CredentialStore struct {
	mu   sync.Mutex
	path string
}

// NewCredentialStore creates a store persisting to path. Nothing is read or
// written until the first operation.
func NewCredentialStore(path string) *CredentialStore {
	return &CredentialStore{path: path}
}

// Exists reports whether a credential record has been persisted.
func (s *CredentialStore) Exists() bool {
	info, err := os.Stat(s.path)
	return err == nil && !info.IsDir()
}

// Bootstrap creates the sole admin credential. It fails with
// ErrAlreadyInitialized when a record exists and ErrInvalidInput on empty
// username or password.
func (s *CredentialStore) Bootstrap(username, password string) error {
	if username == "" || password == "" {
		return ErrInvalidInput
	}
	if strings.Contains(username, ":") {
		return fmt.Errorf("%w: username may not contain ':'", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Exists() {
		return ErrAlreadyInitialized
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.persist(username, string(hash))
}

// Verify reports whether username and password match the persisted record.
// It never returns an error: a missing or malformed store, or any hash
// mismatch, is simply "no". The bcrypt comparison is constant-time.
func (s *CredentialStore) Verify(username, password string) bool {
	storedUser, storedHash, err := s.load()
	if err != nil {
		return false
	}
	if username != storedUser {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(password)) == nil
}

// Rotate replaces the password hash in place, preserving the username.
func (s *CredentialStore) Rotate(username, newPassword string) error {
	if newPassword == "" {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	storedUser, _, err := s.load()
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	if username != storedUser {
		return ErrUserNotFound
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.persist(storedUser, string(hash))
}

// Username returns the stored admin username. It distinguishes the two
// failure modes Verify deliberately flattens: fs.ErrNotExist when no record
// has been persisted yet, ErrMalformedCredentials when the file exists but
// cannot be parsed. Used for startup diagnostics and the session endpoint.
func (s *CredentialStore) Username() (string, error) {
	user, _, err := s.load()
	return user, err
}

// load reads and parses the credential file.
func (s *CredentialStore) load() (username, hash string, err error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", "", fmt.Errorf("credential store: %w", fs.ErrNotExist)
		}
		return "", "", fmt.Errorf("read credential file: %w", err)
	}

	line := strings.TrimRight(string(data), "\r\n")
	// First colon only: bcrypt's "$2a$…" encoding is colon-free today, but
	// the file format promises tolerance for hash schemes that are not.
	user, rest, found := strings.Cut(line, ":")
	if !found || user == "" || rest == "" || strings.ContainsAny(line, "\n") {
		return "", "", ErrMalformedCredentials
	}
	return user, rest, nil
}

// persist writes "username:hash" atomically: temp file in the same
// directory, then rename over the target. Callers hold s.mu.
func (s *CredentialStore) persist(username, hash string) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".vault-creds-*.tmp")
	if err != nil {
		return fmt.Errorf("could not create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := fmt.Fprintf(tmp, "%s:%s\n", username, hash); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("could not write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("could not sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("could not close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("could not chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("could not rename %s to %s: %w", tmpName, s.path, err)
	}
	return nil
}
