package port

import "context"

// FileStorage stores archived documents under a root directory.
// Paths are slash-separated and relative to that root.
type FileStorage interface {
	Save(ctx context.Context, path string, content []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) bool
}
