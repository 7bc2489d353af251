// Package uploads stores attachment files. The persistence core only keeps
// the path a Store hands back.
package uploads

import (
	"context"
	"errors"
	"io"
)

var ErrNotFound = errors.New("upload not found")

// Store saves, opens and removes uploaded files by path.
type Store interface {
	// Save stores r under a collision-resistant name derived from name and
	// returns the path to record on the attachment.
	Save(ctx context.Context, name string, r io.Reader) (string, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	// Remove deletes the file. A missing file is not an error.
	Remove(ctx context.Context, path string) error
}
