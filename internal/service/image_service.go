package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"net/http"
	"strings"

	"tidepool/internal/models"
	"tidepool/internal/observability"
	"tidepool/internal/storage"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	MaxUploadSizeBytes = 10 * 1024 * 1024
	MaxImageDimension  = 2048
	WebPQuality        = 70
)

// ImageService normalizes uploads and hands them to the external object
// store. Every stored image is re-encoded to capped-size WebP so the
// store never holds raw client bytes.
type ImageService struct {
	store storage.ObjectStore
}

func NewImageService(store storage.ObjectStore) *ImageService {
	return &ImageService{store: store}
}

type UploadImageInput struct {
	UserID      uint
	Filename    string
	ContentType string
	Content     []byte
}

// Upload validates, normalizes, and stores an image, returning the
// stored object reference.
func (s *ImageService) Upload(ctx context.Context, in UploadImageInput) (storage.Object, error) {
	if in.UserID == 0 {
		return storage.Object{}, models.NewValidationError("Invalid user")
	}
	if len(in.Content) == 0 {
		return storage.Object{}, models.NewValidationError("No file uploaded")
	}
	if len(in.Content) > MaxUploadSizeBytes {
		return storage.Object{}, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", MaxUploadSizeBytes/(1024*1024)))
	}

	detectedType := http.DetectContentType(in.Content)
	if !isAllowedImageMIME(detectedType) {
		return storage.Object{}, models.NewValidationError("Invalid image type")
	}

	decoded, _, err := image.Decode(bytes.NewReader(in.Content))
	if err != nil {
		return storage.Object{}, models.NewValidationError("Invalid image file")
	}

	normalized := resizeToFit(decoded, MaxImageDimension, MaxImageDimension)

	var buf bytes.Buffer
	if err := webp.Encode(&buf, normalized, &webp.Options{Quality: WebPQuality}); err != nil {
		observability.MediaUploads.WithLabelValues("encode_error").Inc()
		return storage.Object{}, models.NewInternalError(err)
	}

	name := contentAddressedName(in.UserID, buf.Bytes())
	obj, err := s.store.Put(ctx, name, "image/webp", buf.Bytes())
	if err != nil {
		observability.MediaUploads.WithLabelValues("store_error").Inc()
		return storage.Object{}, err
	}
	observability.MediaUploads.WithLabelValues("ok").Inc()
	return obj, nil
}

// Delete removes a stored object. Callers treat failures as
// best-effort; a dangling object must not block the user action.
func (s *ImageService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return s.store.Delete(ctx, id)
}

func contentAddressedName(userID uint, data []byte) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("u%d-%s.webp", userID, hex.EncodeToString(sum[:8]))
}

func isAllowedImageMIME(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch ct {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scaleW := float64(maxWidth) / float64(w)
	scaleH := float64(maxHeight) / float64(h)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}
	newW := int(float64(w) * scale)
	newH := int(float64(h) * scale)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}
