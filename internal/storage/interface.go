package storage

import (
	"context"
	"io"
)

// Object is one blob to store together with the headers it is served with.
type Object struct {
	Key         string
	Body        io.Reader
	Size        int64
	ContentType string
	// Filename, when set, is served as an attachment download name.
	Filename string
}

// ObjectStorage defines the object storage operations the export archive needs
type ObjectStorage interface {
	// Put stores an object, replacing any object with the same key
	Put(ctx context.Context, obj Object) error

	// GetURL returns the URL for accessing an object
	GetURL(key string) string
}
