package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/timmy/memegenie/internal/logger"
)

// ExportArchive stores exported memes under a key prefix.
type ExportArchive struct {
	store  ObjectStorage
	prefix string
}

// NewExportArchive wraps store; an empty prefix stores at the bucket root.
func NewExportArchive(store ObjectStorage, prefix string) *ExportArchive {
	return &ExportArchive{store: store, prefix: strings.Trim(prefix, "/")}
}

// Archive uploads a PNG export.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - filename: export file name, used as the object key under the prefix.
//   - data: encoded PNG bytes.
//
// Returns:
//   - string: public URL of the stored object.
//   - error: non-nil if the upload fails.
func (a *ExportArchive) Archive(ctx context.Context, filename string, data []byte) (string, error) {
	key := filename
	if a.prefix != "" {
		key = path.Join(a.prefix, filename)
	}

	start := time.Now()
	err := a.store.Put(ctx, Object{
		Key:         key,
		Body:        bytes.NewReader(data),
		Size:        int64(len(data)),
		ContentType: "image/png",
		Filename:    filename,
	})
	if err != nil {
		return "", fmt.Errorf("failed to archive %s: %w", key, err)
	}

	url := a.store.GetURL(key)
	logger.With(logger.Fields{"key": key}).
		Since(start).
		WithSize(len(data)).
		Info(ctx, "Export archived")
	return url, nil
}
