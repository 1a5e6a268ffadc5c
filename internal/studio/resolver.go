package studio

import (
	"net/http"
	"strings"

	"github.com/timmy/memegenie/internal/domain"
)

// FromUpload wraps uploaded bytes as an embedded image reference. The
// declared media type is used when it is an image type, otherwise the bytes
// are sniffed. It returns false when there is no file.
func FromUpload(data []byte, declared string) (domain.ImageRef, bool) {
	if len(data) == 0 {
		return domain.ImageRef{}, false
	}
	mediaType := strings.TrimSpace(strings.Split(declared, ";")[0])
	if !strings.HasPrefix(mediaType, "image/") {
		mediaType = http.DetectContentType(data)
	}
	return domain.EmbeddedImageRef(mediaType, data), true
}

// FromTemplate wraps a template URL without fetching it.
func FromTemplate(url string) (domain.ImageRef, error) {
	return domain.ParseImageRef(url)
}
