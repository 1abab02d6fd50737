package media

import (
	"context"
	"fmt"

	"realblog/internal/models"
	"realblog/internal/observability"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultAvatarMaxSide is the bounding box side of stored avatars.
const DefaultAvatarMaxSide = 300

// AvatarNormalizer shrinks stored avatars so neither side exceeds MaxSide.
type AvatarNormalizer struct {
	Store   *Store
	MaxSide int
}

// NewAvatarNormalizer returns a normalizer over store; maxSide <= 0 selects the default.
func NewAvatarNormalizer(store *Store, maxSide int) *AvatarNormalizer {
	if maxSide <= 0 {
		maxSide = DefaultAvatarMaxSide
	}
	return &AvatarNormalizer{Store: store, MaxSide: maxSide}
}

// SaveAvatar writes an uploaded avatar for userID and returns its relative path.
// Content that does not sniff as a supported image type is rejected.
func (n *AvatarNormalizer) SaveAvatar(userID uint, content []byte) (string, error) {
	if len(content) == 0 {
		return "", models.NewValidationError("No file uploaded")
	}
	ext := extensionFor(mimeFormat(sniffMIME(content)))
	if ext == "" {
		return "", models.NewValidationError("Avatar must be a JPEG, PNG, GIF or WebP image")
	}
	rel := fmt.Sprintf("avatars/%d/%s%s", userID, uuid.NewString(), ext)
	if err := n.Store.Write(rel, content); err != nil {
		return "", models.NewInternalError(err)
	}
	return rel, nil
}

// Normalize decodes the stored file at rel and, when it is larger than the
// bounding box, overwrites it with a resized copy in the same format.
// An undecodable file is reported as a validation error.
func (n *AvatarNormalizer) Normalize(ctx context.Context, rel string) (err error) {
	_, span := observability.StartSpan(ctx, "media.NormalizeAvatar", attribute.String("media.path", rel))
	defer func() { observability.EndSpan(span, err) }()

	content, err := n.Store.Read(rel)
	if err != nil {
		observability.AvatarNormalizations.WithLabelValues("failed").Inc()
		return models.NewExternalError("media store", err)
	}

	img, format, err := Decode(content)
	if err != nil {
		observability.AvatarNormalizations.WithLabelValues("failed").Inc()
		return &models.AppError{
			Code:    models.CodeValidation,
			Message: "Upload a valid image. The file you uploaded was either not an image or a corrupted image.",
			Err:     models.NewExternalError("image codec", err),
		}
	}

	resized, changed := FitWithin(img, n.MaxSide)
	if !changed {
		observability.AvatarNormalizations.WithLabelValues("unchanged").Inc()
		return nil
	}

	out, err := Encode(resized, format)
	if err != nil {
		observability.AvatarNormalizations.WithLabelValues("failed").Inc()
		return models.NewExternalError("image codec", err)
	}
	if err := n.Store.Write(rel, out); err != nil {
		observability.AvatarNormalizations.WithLabelValues("failed").Inc()
		return models.NewInternalError(err)
	}

	observability.AvatarNormalizations.WithLabelValues("resized").Inc()
	return nil
}

func mimeFormat(contentType string) string {
	switch normalizeContentType(contentType) {
	case "image/jpeg":
		return "jpeg"
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	}
	return ""
}
