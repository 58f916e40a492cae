package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripQuotes(t *testing.T) {
	tests := []struct{ in, want string }{
		{`"/data/docs"`, "/data/docs"},
		{`'/data/docs'`, "/data/docs"},
		{`"'/data/docs'"`, "/data/docs"},
		{` /data/docs `, "/data/docs"},
		{`/data/docs`, "/data/docs"},
		{`""`, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripQuotes(tt.in))
	}
}

func TestFileSystemEnumerateWalksDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.md"), []byte("beta"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0o644))

	fs := NewFileSystem([]string{`"` + dir + `"`})
	refs, err := fs.Enumerate(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 2)

	names := []string{refs[0].Name, refs[1].Name}
	assert.ElementsMatch(t, []string{"a.txt", "b.md"}, names)
}

func TestFileSystemEnumerateSkipsUnsupported(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc.txt"), []byte("text"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blob.bin"), []byte{0x00, 0x01}, 0o644))

	fs := NewFileSystem([]string{dir})
	refs, err := fs.Enumerate(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "doc.txt", refs[0].Name)
}

func TestFileSystemEnumerateSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))

	fs := NewFileSystem([]string{path})
	refs, err := fs.Enumerate(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "doc.txt", refs[0].Name)
	assert.Equal(t, int64(7), refs[0].Size)
}

func TestFileSystemEnumerateMissingPath(t *testing.T) {
	fs := NewFileSystem([]string{"/no/such/path"})
	_, err := fs.Enumerate(context.Background())
	assert.Error(t, err)
}

func TestFileSystemFetch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	fs := NewFileSystem([]string{dir})
	refs, err := fs.Enumerate(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 1)

	data, err := fs.Fetch(context.Background(), refs[0])
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestTextSource(t *testing.T) {
	src := NewText(map[string]string{
		"sample":    "Inline content.",
		"readme.md": "# Title",
	})

	refs, err := src.Enumerate(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 2)

	byName := map[string]string{}
	for _, ref := range refs {
		data, err := src.Fetch(context.Background(), ref)
		require.NoError(t, err)
		byName[ref.Name] = string(data)
	}
	assert.Equal(t, "Inline content.", byName["sample.txt"])
	assert.Equal(t, "# Title", byName["readme.md"])
}
