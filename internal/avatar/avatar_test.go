package avatar

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSaveWritesFile(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, "/avatars/", quietLogger())
	id := uuid.New()

	url, err := s.Save(context.Background(), id, pngHeader)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/avatars/"+id.String()+"-"), url)
	assert.True(t, strings.HasSuffix(url, ".png"), url)

	b, err := os.ReadFile(filepath.Join(dir, strings.TrimPrefix(url, "/avatars/")))
	require.NoError(t, err)
	assert.Equal(t, pngHeader, b)
}

func TestSaveFallsBackToDataURL(t *testing.T) {
	s := NewStore("", "/avatars", quietLogger())

	url, err := s.Save(context.Background(), uuid.New(), pngHeader)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"), url)
}

func TestSaveRejectsNonImages(t *testing.T) {
	s := NewStore(t.TempDir(), "/avatars", quietLogger())

	_, err := s.Save(context.Background(), uuid.New(), []byte("hello world"))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}
