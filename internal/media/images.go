package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"strings"

	"realblog/internal/models"
	"realblog/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultMaxUploadMB = 10
	MasterMaxSide      = 1600
)

// UploadImageInput is one post image upload.
type UploadImageInput struct {
	UserID      uint
	Filename    string
	ContentType string
	Content     []byte
}

// UploadedImage describes a stored post image.
type UploadedImage struct {
	Hash    string `json:"hash"`
	URL     string `json:"url"`
	WebPURL string `json:"webp_url"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

// ImageService stores post illustrations as a bounded JPEG master plus a WebP copy.
type ImageService struct {
	store          *Store
	maxUploadBytes int64
}

// NewImageService returns an ImageService writing to store.
func NewImageService(store *Store, maxUploadMB int) *ImageService {
	if maxUploadMB <= 0 {
		maxUploadMB = DefaultMaxUploadMB
	}
	return &ImageService{store: store, maxUploadBytes: int64(maxUploadMB) * 1024 * 1024}
}

// UploadPostImage validates, bounds and stores an image. Identical content from
// the same user lands in the same content-addressed directory.
func (s *ImageService) UploadPostImage(ctx context.Context, in UploadImageInput) (img *UploadedImage, err error) {
	_, span := observability.StartSpan(ctx, "media.UploadPostImage", attribute.Int("media.bytes", len(in.Content)))
	defer func() { observability.EndSpan(span, err) }()

	if in.UserID == 0 {
		return nil, models.NewValidationError("Invalid user")
	}
	if len(in.Content) == 0 {
		return nil, models.NewValidationError("No file uploaded")
	}
	if int64(len(in.Content)) > s.maxUploadBytes {
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxUploadBytes/(1024*1024)))
	}
	if !allowedMIME(sniffMIME(in.Content)) {
		return nil, models.NewValidationError("Invalid image type")
	}

	decoded, format, err := Decode(in.Content)
	if err != nil {
		return nil, models.NewValidationError("Invalid image file")
	}
	if provided := normalizeContentType(in.ContentType); strings.HasPrefix(provided, "image/") && provided != formatMIME(format) {
		return nil, models.NewValidationError("Image content type mismatch")
	}

	master, _ := FitWithin(decoded, MasterMaxSide)
	jpg, err := Encode(master, "jpeg")
	if err != nil {
		return nil, models.NewExternalError("image codec", err)
	}
	webpBytes, err := Encode(master, "webp")
	if err != nil {
		return nil, models.NewExternalError("image codec", err)
	}

	hash := contentHash(in.UserID, jpg)
	jpgRel := path.Join("images", hash, "master.jpg")
	webpRel := path.Join("images", hash, "master.webp")

	if err := s.store.Write(jpgRel, jpg); err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := s.store.Write(webpRel, webpBytes); err != nil {
		_ = s.store.Remove(jpgRel)
		return nil, models.NewInternalError(err)
	}

	b := master.Bounds()
	return &UploadedImage{
		Hash:    hash,
		URL:     s.store.URL(jpgRel),
		WebPURL: s.store.URL(webpRel),
		Width:   b.Dx(),
		Height:  b.Dy(),
	}, nil
}

func contentHash(userID uint, content []byte) string {
	h := sha256.New()
	_, _ = fmt.Fprintf(h, "%d:", userID)
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}
