package vault

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *CredentialStore {
	t.Helper()
	return NewCredentialStore(filepath.Join(t.TempDir(), ".credentials"))
}

func TestBootstrapAndVerify(t *testing.T) {
	s := newTestStore(t)
	assert.False(t, s.Exists())

	require.NoError(t, s.Bootstrap("admin", "hunter2"))
	assert.True(t, s.Exists())

	assert.True(t, s.Verify("admin", "hunter2"))
	assert.False(t, s.Verify("admin", "wrong"))
	assert.False(t, s.Verify("somebody", "hunter2"))
	assert.False(t, s.Verify("", ""))
}

func TestBootstrapOnlyOnce(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Bootstrap("admin", "first"))

	err := s.Bootstrap("other", "second")
	assert.ErrorIs(t, err, ErrAlreadyInitialized)

	// The original credential is untouched.
	assert.True(t, s.Verify("admin", "first"))
	assert.False(t, s.Verify("other", "second"))
}

func TestBootstrapValidation(t *testing.T) {
	s := newTestStore(t)
	assert.ErrorIs(t, s.Bootstrap("", "pw"), ErrInvalidInput)
	assert.ErrorIs(t, s.Bootstrap("user", ""), ErrInvalidInput)
	assert.ErrorIs(t, s.Bootstrap("a:b", "pw"), ErrInvalidInput)
	assert.False(t, s.Exists())
}

func TestRotate(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Bootstrap("admin", "old"))

	require.NoError(t, s.Rotate("admin", "new"))
	assert.True(t, s.Verify("admin", "new"))
	assert.False(t, s.Verify("admin", "old"))

	assert.ErrorIs(t, s.Rotate("admin", ""), ErrInvalidInput)
	assert.ErrorIs(t, s.Rotate("nobody", "pw"), ErrUserNotFound)
}

// A second store over the same path sees the credential written by the
// first, covering the restart path.
func TestCredentialsSurviveRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".credentials")

	first := NewCredentialStore(path)
	require.NoError(t, first.Bootstrap("admin", "hunter2"))

	second := NewCredentialStore(path)
	assert.True(t, second.Exists())
	assert.True(t, second.Verify("admin", "hunter2"))

	user, err := second.Username()
	require.NoError(t, err)
	assert.Equal(t, "admin", user)
}

func TestOnDiskFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".credentials")
	s := NewCredentialStore(path)
	require.NoError(t, s.Bootstrap("admin", "hunter2"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	line := strings.TrimRight(string(data), "\n")
	user, hash, found := strings.Cut(line, ":")
	require.True(t, found)
	assert.Equal(t, "admin", user)
	assert.True(t, strings.HasPrefix(hash, "$2"), "bcrypt hash, got %q", hash)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestMalformedCredentialFile(t *testing.T) {
	for _, content := range []string{"", "no-colon-here\n", ":hashonly\n", "useronly:\n"} {
		path := filepath.Join(t.TempDir(), ".credentials")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		s := NewCredentialStore(path)
		assert.False(t, s.Verify("admin", "pw"), "content %q", content)

		_, err := s.Username()
		assert.ErrorIs(t, err, ErrMalformedCredentials, "content %q", content)
	}
}

func TestUsernameWhenMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Username()
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

// Only the first colon separates username from hash, so a colon inside the
// hash encoding parses through.
func TestFirstColonSplit(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".credentials")
	require.NoError(t, os.WriteFile(path, []byte("admin:scheme:with:colons\n"), 0o600))

	s := NewCredentialStore(path)
	user, err := s.Username()
	require.NoError(t, err)
	assert.Equal(t, "admin", user)
}
