package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIngestor(t *testing.T) (*Ingestor, *Policy, string) {
	t.Helper()
	dataDir := t.TempDir()
	policy := NewPolicy(dataDir)
	return NewIngestor(policy, nil), policy, dataDir
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestIngestStoresFile(t *testing.T) {
	ing, policy, _ := newTestIngestor(t)

	stored, err := ing.Ingest("gallery", "sunset.jpg", strings.NewReader("jpegbytes"))
	require.NoError(t, err)
	assert.Equal(t, "sunset.jpg", stored.StoredName)
	assert.Equal(t, "sunset.jpg", stored.OriginalName)
	assert.Equal(t, CategoryGallery, stored.Category)
	assert.Equal(t, int64(9), stored.SizeBytes)

	data, err := os.ReadFile(filepath.Join(policy.RootDir(CategoryGallery), "sunset.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpegbytes", string(data))
}

func TestIngestCollisionLadder(t *testing.T) {
	ing, policy, _ := newTestIngestor(t)

	want := []string{"a.txt", "a_1.txt", "a_2.txt"}
	for i, expected := range want {
		stored, err := ing.Ingest("documents", "a.txt", strings.NewReader(fmt.Sprintf("upload %d", i)))
		require.NoError(t, err)
		assert.Equal(t, expected, stored.StoredName)
	}

	// Earlier uploads keep their content.
	data, err := os.ReadFile(filepath.Join(policy.RootDir(CategoryDocuments), "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "upload 0", string(data))
}

func TestIngestCollisionPreservesExtension(t *testing.T) {
	ing, _, _ := newTestIngestor(t)

	first, err := ing.Ingest("video", "trip.tar.mp4", strings.NewReader("a"))
	require.NoError(t, err)
	assert.Equal(t, "trip.tar.mp4", first.StoredName)

	second, err := ing.Ingest("video", "trip.tar.mp4", strings.NewReader("b"))
	require.NoError(t, err)
	assert.Equal(t, "trip.tar_1.mp4", second.StoredName)
}

func TestIngestRejectsWithoutSideEffects(t *testing.T) {
	ing, policy, _ := newTestIngestor(t)

	_, err := ing.Ingest("gallery", "malware.exe", strings.NewReader("MZ"))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = ing.Ingest("attic", "photo.png", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrInvalidCategory)

	_, err = ing.Ingest("gallery", "", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrEmptyFilename)

	// No rejected upload left anything behind, not even the category root
	// for the invalid-category case.
	if entries, err := os.ReadDir(policy.RootDir(CategoryGallery)); err == nil {
		assert.Empty(t, entries)
	}
}

func TestIngestConfinesTraversal(t *testing.T) {
	ing, policy, dataDir := newTestIngestor(t)

	stored, err := ing.Ingest("documents", "../../../etc/passwd.txt", strings.NewReader("root:x"))
	require.NoError(t, err)
	assert.Equal(t, "passwd.txt", stored.StoredName)

	// The file exists inside the documents root and nowhere above it.
	assert.FileExists(t, filepath.Join(policy.RootDir(CategoryDocuments), "passwd.txt"))
	assert.NoFileExists(t, filepath.Join(dataDir, "passwd.txt"))
	assert.NoFileExists(t, filepath.Join(dataDir, "..", "passwd.txt"))
}

func TestIngestSanitizesHostileNames(t *testing.T) {
	ing, _, _ := newTestIngestor(t)

	cases := []struct {
		in   string
		want string
	}{
		{`..\..\boot.png`, "boot.png"},
		{"dir/sub/photo.png", "photo.png"},
		{".hidden.png", "hidden.png"},
		{"...dots.png", "dots.png"},
		{"spaced name.png", "spaced name.png"},
		{"ctrl\x00\x1fchars.png", "ctrlchars.png"},
	}
	for _, tc := range cases {
		stored, err := ing.Ingest("gallery", tc.in, strings.NewReader("x"))
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, stored.StoredName, tc.in)
	}
}

func TestIngestValidatesBeforeSanitizing(t *testing.T) {
	ing, _, _ := newTestIngestor(t)

	// The raw name has no valid extension, so it is rejected up front even
	// though sanitizing could not have changed the extension anyway.
	_, err := ing.Ingest("documents", "../../etc/passwd", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestIngestConcurrentSameName(t *testing.T) {
	ing, policy, _ := newTestIngestor(t)

	const n = 16
	var wg sync.WaitGroup
	results := make([]string, n)
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stored, err := ing.Ingest("audio", "take.mp3", strings.NewReader(fmt.Sprintf("take %d", i)))
			results[i], errs[i] = stored.StoredName, err
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.False(t, seen[results[i]], "duplicate stored name %q", results[i])
		seen[results[i]] = true
	}

	// Exactly n files, no leftover temp files.
	names := listDir(t, policy.RootDir(CategoryAudio))
	assert.Len(t, names, n)
	for _, name := range names {
		assert.False(t, strings.HasPrefix(name, "."), "temp file left behind: %s", name)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"plain.txt", "plain.txt"},
		{"", "unnamed"},
		{"...", "unnamed"},
		{"   ", "unnamed"},
		{"/abs/path.txt", "path.txt"},
		{`C:\Users\me\doc.pdf`, "doc.pdf"},
		{". leading.txt", "leading.txt"},
		{"trailing.txt  ", "trailing.txt"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, sanitizeFilename(tc.in), "%q", tc.in)
	}
}

func TestSplitBaseExt(t *testing.T) {
	base, ext := splitBaseExt("photo.tar.gz")
	assert.Equal(t, "photo.tar", base)
	assert.Equal(t, ".gz", ext)

	base, ext = splitBaseExt("noext")
	assert.Equal(t, "noext", base)
	assert.Equal(t, "", ext)
}
