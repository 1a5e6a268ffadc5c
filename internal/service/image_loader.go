package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	"image/png"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/memegenie/internal/domain"
	"github.com/timmy/memegenie/internal/logger"
	_ "golang.org/x/image/webp" // register WebP decoder
)

// FetchedImage is the raw payload behind an ImageRef.
type FetchedImage struct {
	Data      []byte
	MediaType string
}

// LoaderConfig holds configuration for the image loader.
type LoaderConfig struct {
	Timeout   time.Duration
	UserAgent string
	MaxBytes  int64
}

// ImageLoader resolves ImageRefs to bytes. URL references are fetched over
// HTTP, embedded references are decoded in place.
type ImageLoader struct {
	client   *resty.Client
	maxBytes int64
}

// NewImageLoader creates a new image loader.
// Parameters:
//   - cfg: loader configuration; zero values fall back to 30s timeout and 20 MB limit.
//
// Returns:
//   - *ImageLoader: initialized loader.
func NewImageLoader(cfg LoaderConfig) *ImageLoader {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 20 << 20
	}

	client := resty.New()
	client.SetTimeout(timeout)
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}

	return &ImageLoader{client: client, maxBytes: maxBytes}
}

// Fetch returns the bytes and media type behind ref.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - ref: image reference; must not be zero.
//
// Returns:
//   - *FetchedImage: payload with a sniffed media type when the source did not declare one.
//   - error: non-nil if the reference is empty, unreachable or too large.
func (l *ImageLoader) Fetch(ctx context.Context, ref domain.ImageRef) (*FetchedImage, error) {
	if ref.IsZero() {
		return nil, domain.ErrNoImage
	}

	if ref.Kind() == domain.ImageKindEmbedded {
		mediaType, data, err := ref.Embedded()
		if err != nil {
			return nil, err
		}
		if int64(len(data)) > l.maxBytes {
			return nil, fmt.Errorf("embedded image is %d bytes, limit is %d", len(data), l.maxBytes)
		}
		return &FetchedImage{Data: data, MediaType: mediaType}, nil
	}

	start := time.Now()
	resp, err := l.client.R().
		SetContext(ctx).
		Get(ref.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("failed to fetch image: HTTP %d", resp.StatusCode())
	}

	data := resp.Body()
	if len(data) == 0 {
		return nil, fmt.Errorf("failed to fetch image: empty body")
	}
	if int64(len(data)) > l.maxBytes {
		return nil, fmt.Errorf("image is %d bytes, limit is %d", len(data), l.maxBytes)
	}

	mediaType := mediaTypeOf(resp.Header().Get("Content-Type"), data)
	logger.With(logger.Fields{"url": ref.URL()}).
		Since(start).
		WithSize(len(data)).
		Debug(ctx, "Fetched image (%s)", mediaType)

	return &FetchedImage{Data: data, MediaType: mediaType}, nil
}

// Decode fetches ref and decodes it into pixels.
func (l *ImageLoader) Decode(ctx context.Context, ref domain.ImageRef) (image.Image, error) {
	fetched, err := l.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(fetched.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s image: %w", fetched.MediaType, err)
	}
	return img, nil
}

// mediaTypeOf prefers a declared image/* content type and sniffs otherwise.
func mediaTypeOf(declared string, data []byte) string {
	declared = strings.TrimSpace(strings.Split(declared, ";")[0])
	if strings.HasPrefix(declared, "image/") {
		return declared
	}
	return http.DetectContentType(data)
}

// inlineMediaTypes are the types the model endpoint accepts as inline data.
var inlineMediaTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
	"image/heic": true,
	"image/heif": true,
}

// toInline transcodes payloads the model cannot take (gif, bmp) to PNG.
func toInline(img *FetchedImage) (*FetchedImage, error) {
	if inlineMediaTypes[img.MediaType] {
		return img, nil
	}
	decoded, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return nil, fmt.Errorf("unsupported image type %s: %w", img.MediaType, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, decoded); err != nil {
		return nil, fmt.Errorf("failed to transcode %s to png: %w", img.MediaType, err)
	}
	return &FetchedImage{Data: buf.Bytes(), MediaType: "image/png"}, nil
}
