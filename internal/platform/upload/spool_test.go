package upload_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xray_backend/internal/platform/upload"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestSpooler_SaveAndRemove(t *testing.T) {
	dir := t.TempDir()
	s, err := upload.NewSpooler(dir)
	require.NoError(t, err)

	a, err := s.Save(strings.NewReader("first"), "chest.PNG")
	require.NoError(t, err)
	b, err := s.Save(strings.NewReader("second"), "chest.PNG")
	require.NoError(t, err)

	assert.NotEqual(t, a.Path, b.Path, "same client name must not collide")
	assert.Equal(t, ".png", filepath.Ext(a.Path))
	assert.Equal(t, "chest.PNG", a.Name)
	assert.Equal(t, int64(5), a.Size)

	data, err := os.ReadFile(b.Path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	require.NoError(t, a.Remove())
	require.NoError(t, a.Remove(), "second remove is a no-op")
	b.RemoveQuietly()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSpooler_SaveFailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	s, err := upload.NewSpooler(dir)
	require.NoError(t, err)

	_, err = s.Save(failingReader{}, "../../etc/passwd.jpg")
	assert.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNewSpooler_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "uploads")
	s, err := upload.NewSpooler(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, s.Dir())
	assert.DirExists(t, dir)
}
