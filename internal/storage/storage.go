package storage

import (
	"context"
	"io"
	"os"
	"time"
)

// FileStorage abstracts the classified file tree served over HTTP.
type FileStorage interface {
	// EnsureLayout creates the root and every category folder if missing.
	EnsureLayout() error
	// Save streams reader into a new, collision-free file chosen from fileName.
	Save(ctx context.Context, fileName string, reader io.Reader) (*FileInfo, error)
	// Open returns the stored file for reading along with its metadata.
	Open(ctx context.Context, category Category, name string) (*os.File, *FileInfo, error)
	// Locate finds which category folder holds name, searching in fixed order.
	Locate(ctx context.Context, name string) (Category, error)
	// List returns every stored file, newest first.
	List(ctx context.Context) ([]FileInfo, error)
}

// FileInfo describes one stored file. The filesystem is the only catalog.
type FileInfo struct {
	Name     string
	Size     int64
	ModTime  time.Time
	Category Category
}

// Path returns the location relative to the storage root, "category/name".
func (f FileInfo) Path() string {
	return string(f.Category) + "/" + f.Name
}
