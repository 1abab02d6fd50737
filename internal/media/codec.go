package media

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"mime"
	"net/http"
	"strings"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register the WebP decoder
)

const (
	JPEGQuality = 82
	WebPQuality = 70
)

// Decode reads an image and reports its format name (jpeg, png, gif, webp).
func Decode(content []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, "", err
	}
	if extensionFor(format) == "" {
		return nil, "", fmt.Errorf("unsupported image format %q", format)
	}
	return img, format, nil
}

// Encode writes img in the named format.
func Encode(img image.Image, format string) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	var err error
	switch format {
	case "jpeg":
		err = jpeg.Encode(buf, img, &jpeg.Options{Quality: JPEGQuality})
	case "png":
		err = png.Encode(buf, img)
	case "gif":
		err = gif.Encode(buf, img, nil)
	case "webp":
		err = webp.Encode(buf, img, &webp.Options{Quality: WebPQuality})
	default:
		return nil, fmt.Errorf("unsupported image format %q", format)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FitWithin scales src down so neither side exceeds maxSide, keeping the
// aspect ratio. Images already inside the box are returned unchanged.
func FitWithin(src image.Image, maxSide int) (image.Image, bool) {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 || (w <= maxSide && h <= maxSide) {
		return src, false
	}

	scale := float64(maxSide) / float64(max(w, h))
	newW := max(int(float64(w)*scale+0.5), 1)
	newH := max(int(float64(h)*scale+0.5), 1)
	newW, newH = min(newW, maxSide), min(newH, maxSide)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Over, nil)
	return dst, true
}

func extensionFor(format string) string {
	switch format {
	case "jpeg":
		return ".jpg"
	case "png":
		return ".png"
	case "gif":
		return ".gif"
	case "webp":
		return ".webp"
	}
	return ""
}

func formatMIME(format string) string {
	if format == "" {
		return ""
	}
	return "image/" + format
}

// sniffMIME detects the content type; webp is matched on its RIFF header.
func sniffMIME(content []byte) string {
	if len(content) >= 12 && string(content[0:4]) == "RIFF" && string(content[8:12]) == "WEBP" {
		return "image/webp"
	}
	return http.DetectContentType(content)
}

func allowedMIME(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	}
	return false
}

func normalizeContentType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = contentType
	}
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if mediaType == "image/jpg" {
		return "image/jpeg"
	}
	return mediaType
}
