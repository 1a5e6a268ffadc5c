package domain

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ImageKind distinguishes how an ImageRef locates its pixels.
type ImageKind string

const (
	ImageKindURL      ImageKind = "url"
	ImageKindEmbedded ImageKind = "embedded"
)

// ErrInvalidImageRef is returned when a string is neither an http(s) URL nor a base64 data URI.
var ErrInvalidImageRef = errors.New("invalid image reference")

// ImageRef is an opaque reference to the working image: either a remote URL
// or a self-describing data URI. The zero value means "no image".
// ImageRefs are values; a new one replaces the old, nothing mutates it.
type ImageRef struct {
	raw string
}

// ParseImageRef validates s and wraps it.
func ParseImageRef(s string) (ImageRef, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "data:"):
		if _, _, err := splitDataURI(s); err != nil {
			return ImageRef{}, err
		}
		return ImageRef{raw: s}, nil
	case strings.HasPrefix(s, "http://"), strings.HasPrefix(s, "https://"):
		u, err := url.Parse(s)
		if err != nil || u.Host == "" {
			return ImageRef{}, fmt.Errorf("%w: bad url %q", ErrInvalidImageRef, s)
		}
		return ImageRef{raw: s}, nil
	default:
		return ImageRef{}, fmt.Errorf("%w: unsupported scheme", ErrInvalidImageRef)
	}
}

// EmbeddedImageRef builds a data URI reference from raw bytes.
// Parameters:
//   - mediaType: MIME type recorded in the URI, e.g. image/png.
//   - data: raw image bytes.
//
// Returns:
//   - ImageRef: embedded reference.
func EmbeddedImageRef(mediaType string, data []byte) ImageRef {
	return ImageRef{raw: "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)}
}

// IsZero reports whether no image is set.
func (r ImageRef) IsZero() bool { return r.raw == "" }

// String returns the encoded reference.
func (r ImageRef) String() string { return r.raw }

// Kind reports whether the reference is a URL or an embedded payload.
func (r ImageRef) Kind() ImageKind {
	if strings.HasPrefix(r.raw, "data:") {
		return ImageKindEmbedded
	}
	return ImageKindURL
}

// URL returns the remote URL, or "" for embedded references.
func (r ImageRef) URL() string {
	if r.Kind() != ImageKindURL {
		return ""
	}
	return r.raw
}

// Embedded decodes the data URI payload.
// Returns an error for URL references.
func (r ImageRef) Embedded() (mediaType string, data []byte, err error) {
	if r.Kind() != ImageKindEmbedded {
		return "", nil, fmt.Errorf("%w: not an embedded image", ErrInvalidImageRef)
	}
	mediaType, payload, err := splitDataURI(r.raw)
	if err != nil {
		return "", nil, err
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: bad base64 payload: %v", ErrInvalidImageRef, err)
	}
	return mediaType, data, nil
}

// EmbeddedInfo reports the media type and decoded byte size of an embedded
// image without decoding its payload.
func (r ImageRef) EmbeddedInfo() (mediaType string, size int, err error) {
	if r.Kind() != ImageKindEmbedded {
		return "", 0, fmt.Errorf("%w: not an embedded image", ErrInvalidImageRef)
	}
	mediaType, payload, err := splitDataURI(r.raw)
	if err != nil {
		return "", 0, err
	}
	padding := len(payload) - len(strings.TrimRight(payload, "="))
	return mediaType, base64.StdEncoding.DecodedLen(len(payload)) - padding, nil
}

// splitDataURI splits data:<type>;base64,<payload>.
func splitDataURI(s string) (mediaType, payload string, err error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !ok {
		return "", "", fmt.Errorf("%w: data uri without payload", ErrInvalidImageRef)
	}
	mediaType, isBase64 := strings.CutSuffix(header, ";base64")
	if !isBase64 {
		return "", "", fmt.Errorf("%w: data uri must be base64", ErrInvalidImageRef)
	}
	if mediaType == "" {
		mediaType = "image/png"
	}
	return mediaType, payload, nil
}
