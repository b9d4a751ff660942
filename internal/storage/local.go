package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// DefaultChunkSize is the copy buffer used when none is configured.
const DefaultChunkSize = 1 << 20

// maxCreateAttempts bounds how often Save re-resolves a name after losing
// a creation race to a concurrent upload of the same name.
const maxCreateAttempts = 16

// LocalStorage stores files on the local filesystem under
// root/{audio,video,pictures,documents,files}.
type LocalStorage struct {
	root      string
	chunkSize int
}

func NewLocalStorage(root string, chunkSize int) *LocalStorage {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &LocalStorage{root: root, chunkSize: chunkSize}
}

func (s *LocalStorage) Root() string {
	return s.root
}

// Dir returns the folder backing a category.
func (s *LocalStorage) Dir(c Category) string {
	return filepath.Join(s.root, string(c))
}

func (s *LocalStorage) EnsureLayout() error {
	for _, c := range categoryOrder {
		if err := os.MkdirAll(s.Dir(c), 0755); err != nil {
			return fmt.Errorf("create dir: %w", err)
		}
	}
	return nil
}

func (s *LocalStorage) Save(ctx context.Context, fileName string, reader io.Reader) (*FileInfo, error) {
	name, err := SanitizeName(fileName)
	if err != nil {
		return nil, err
	}
	category := Classify(name)

	f, storagePath, err := s.create(s.Dir(category), name)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, s.chunkSize)
	_, err = io.CopyBuffer(&fileWriter{f: f, path: storagePath}, &contextReader{ctx: ctx, r: reader}, buf)
	if err == nil {
		if cerr := f.Close(); cerr != nil {
			err = &WriteError{Path: storagePath, Err: cerr}
		}
	} else {
		_ = f.Close()
	}
	if err != nil {
		_ = os.Remove(storagePath)
		var werr *WriteError
		if errors.As(err, &werr) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrTransferAborted, err)
	}

	st, err := os.Stat(storagePath)
	if err != nil {
		return nil, fmt.Errorf("stat stored file: %w", err)
	}
	return &FileInfo{
		Name:     filepath.Base(storagePath),
		Size:     st.Size(),
		ModTime:  st.ModTime(),
		Category: category,
	}, nil
}

// create opens a new file under folder without ever truncating an existing
// one. O_EXCL turns a lost race into a retry with a freshly resolved name.
func (s *LocalStorage) create(folder, name string) (*os.File, string, error) {
	if err := os.MkdirAll(folder, 0755); err != nil {
		return nil, "", &WriteError{Path: folder, Err: err}
	}
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		storagePath, err := ResolveName(folder, name)
		if err != nil {
			return nil, "", err
		}
		f, err := os.OpenFile(storagePath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return f, storagePath, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", &WriteError{Path: storagePath, Err: err}
		}
	}
	return nil, "", &WriteError{Path: filepath.Join(folder, name), Err: fs.ErrExist}
}

func (s *LocalStorage) Open(_ context.Context, category Category, name string) (*os.File, *FileInfo, error) {
	if _, ok := ParseCategory(string(category)); !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	base, err := SanitizeName(name)
	if err != nil {
		return nil, nil, err
	}
	if base != name {
		return nil, nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	storagePath := filepath.Join(s.Dir(category), name)
	f, err := os.Open(storagePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s/%s", ErrNotFound, category, name)
		}
		return nil, nil, fmt.Errorf("open file: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("stat file: %w", err)
	}
	if !st.Mode().IsRegular() {
		f.Close()
		return nil, nil, fmt.Errorf("%w: %s/%s", ErrNotFound, category, name)
	}
	return f, &FileInfo{Name: name, Size: st.Size(), ModTime: st.ModTime(), Category: category}, nil
}

func (s *LocalStorage) Locate(_ context.Context, name string) (Category, error) {
	base, err := SanitizeName(name)
	if err != nil {
		return "", err
	}
	if base != name {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	for _, c := range categoryOrder {
		st, err := os.Stat(filepath.Join(s.Dir(c), name))
		if err == nil && st.Mode().IsRegular() {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, name)
}

// List scans every category folder. A folder that is missing or unreadable
// contributes nothing rather than failing the whole scan.
func (s *LocalStorage) List(ctx context.Context) ([]FileInfo, error) {
	files := []FileInfo{}
	for _, c := range categoryOrder {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entries, err := os.ReadDir(s.Dir(c))
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			info, err := e.Info()
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			files = append(files, FileInfo{
				Name:     e.Name(),
				Size:     info.Size(),
				ModTime:  info.ModTime(),
				Category: c,
			})
		}
	}
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].ModTime.After(files[j].ModTime)
	})
	return files, nil
}

// fileWriter tags destination failures so Save can tell them apart from a
// broken inbound stream.
type fileWriter struct {
	f    *os.File
	path string
}

func (w *fileWriter) Write(p []byte) (int, error) {
	n, err := w.f.Write(p)
	if err != nil {
		return n, &WriteError{Path: w.path, Err: err}
	}
	return n, nil
}

// contextReader lets non-HTTP callers cancel a Save. Fiber never cancels the
// request context on disconnect, so HTTP aborts surface as read errors instead.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *contextReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
