package media

import (
	"bytes"
	"context"
	"image"
	"os"
	"path/filepath"
	"testing"

	"realblog/internal/models"
	"realblog/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storedSize(t *testing.T, store *Store, rel string) (int, int, string) {
	t.Helper()
	content, err := store.Read(rel)
	require.NoError(t, err)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(content))
	require.NoError(t, err)
	return cfg.Width, cfg.Height, format
}

func TestNormalize_ShrinksPreservingAspect(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		format  string
		wantW   int
		wantH   int
	}{
		{"png landscape", testutil.TinyPNG(t, 900, 600), "png", 300, 200},
		{"jpeg portrait", testutil.TinyJPEG(t, 400, 1200), "jpeg", 100, 300},
		{"small untouched", testutil.TinyPNG(t, 120, 80), "png", 120, 80},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewStore(t.TempDir(), "/media")
			n := NewAvatarNormalizer(store, 300)

			rel, err := n.SaveAvatar(7, tt.content)
			require.NoError(t, err)
			require.NoError(t, n.Normalize(context.Background(), rel))

			w, h, format := storedSize(t, store, rel)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
			assert.Equal(t, tt.format, format)
		})
	}
}

func TestNormalize_UndecodableIsValidationError(t *testing.T) {
	store := NewStore(t.TempDir(), "/media")
	n := NewAvatarNormalizer(store, 300)

	rel, err := n.SaveAvatar(7, testutil.CorruptPNG())
	require.NoError(t, err)

	err = n.Normalize(context.Background(), rel)
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.CodeValidation))
	assert.Equal(t, 400, models.StatusFor(err))
}

func TestSaveAvatar_RejectsNonImages(t *testing.T) {
	n := NewAvatarNormalizer(NewStore(t.TempDir(), ""), 0)
	_, err := n.SaveAvatar(1, []byte("plain text, not an image"))
	assert.True(t, models.IsCode(err, models.CodeValidation))
	assert.Equal(t, DefaultAvatarMaxSide, n.MaxSide)
}

func TestStore_PathConfinement(t *testing.T) {
	store := NewStore(t.TempDir(), "/media/")
	_, err := store.Path("../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidPath)
	_, err = store.Path("")
	assert.ErrorIs(t, err, ErrInvalidPath)

	p, err := store.Path("avatars/1/a.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(store.Root, "avatars", "1", "a.png"), p)
	assert.Equal(t, "/media/avatars/1/a.png", store.URL("avatars/1/a.png"))

	require.NoError(t, store.Remove("avatars/1/missing.png"))
}

func TestUploadPostImage(t *testing.T) {
	store := NewStore(t.TempDir(), "/media")
	svc := NewImageService(store, 5)
	content := testutil.TinyPNG(t, 2000, 1000)

	img, err := svc.UploadPostImage(context.Background(), UploadImageInput{
		UserID:      42,
		Filename:    "cover.png",
		ContentType: "image/png",
		Content:     content,
	})
	require.NoError(t, err)
	assert.Equal(t, 1600, img.Width)
	assert.Equal(t, 800, img.Height)
	assert.Equal(t, "/media/images/"+img.Hash+"/master.jpg", img.URL)

	for _, name := range []string{"master.jpg", "master.webp"} {
		_, statErr := os.Stat(filepath.Join(store.Root, "images", img.Hash, name))
		assert.NoError(t, statErr, name)
	}

	again, err := svc.UploadPostImage(context.Background(), UploadImageInput{UserID: 42, Content: content})
	require.NoError(t, err)
	assert.Equal(t, img.Hash, again.Hash)
}

func TestUploadPostImage_Rejections(t *testing.T) {
	svc := NewImageService(NewStore(t.TempDir(), "/media"), 1)
	png := testutil.TinyPNG(t, 10, 10)

	tests := []struct {
		name string
		in   UploadImageInput
	}{
		{"anonymous", UploadImageInput{Content: png}},
		{"empty", UploadImageInput{UserID: 1}},
		{"not an image", UploadImageInput{UserID: 1, Content: []byte("hello")}},
		{"type mismatch", UploadImageInput{UserID: 1, ContentType: "image/gif", Content: png}},
		{"too large", UploadImageInput{UserID: 1, Content: make([]byte, 2*1024*1024)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UploadPostImage(context.Background(), tt.in)
			assert.True(t, models.IsCode(err, models.CodeValidation), "got %v", err)
		})
	}
}
