package media

import (
	"bytes"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"jnestagram/internal/models"
	"jnestagram/internal/testutil"

	"github.com/chai2010/webp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResizeToWebP_FitsWithinBox(t *testing.T) {
	out, err := ResizeToWebP(testutil.TinyPNG(t, 1200, 300), 600, 85)
	require.NoError(t, err)

	cfg, err := webp.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 600, cfg.Width)
	assert.Equal(t, 150, cfg.Height)
}

func TestResizeToWebP_KeepsSmallImages(t *testing.T) {
	out, err := ResizeToWebP(testutil.TinyPNG(t, 40, 20), 600, 85)
	require.NoError(t, err)

	img, err := webp.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 40, 20), img.Bounds())
}

func TestResizeToWebP_RejectsGarbage(t *testing.T) {
	_, err := ResizeToWebP([]byte("not an image"), 600, 85)
	assert.True(t, models.IsCode(err, models.CodeValidation))
}

func TestStore_SaveAndRemove(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	rel, err := store.Save("avatars", testutil.TinyPNG(t, 800, 800), 600, 85)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(rel, "avatars/"))
	assert.True(t, strings.HasSuffix(rel, ".webp"))

	_, err = os.Stat(filepath.Join(dir, rel))
	require.NoError(t, err)

	require.NoError(t, store.Remove(rel))
	require.NoError(t, store.Remove(rel), "removing twice is fine")
	_, err = os.Stat(filepath.Join(dir, rel))
	assert.True(t, os.IsNotExist(err))
}

func TestStore_SaveValidatesInput(t *testing.T) {
	store := NewStore(t.TempDir())

	_, err := store.Save("avatars", nil, 600, 85)
	assert.True(t, models.IsCode(err, models.CodeValidation))

	_, err = store.Save("avatars", []byte("%PDF-1.4 hello"), 600, 85)
	assert.True(t, models.IsCode(err, models.CodeValidation))
}
