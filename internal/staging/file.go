package staging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// File is a locally selected file awaiting upload. Name is its key within a
// batch; content is read only when the transfer starts.
type File struct {
	Name        string
	Size        int64
	AcceptClass string

	open func() (io.ReadCloser, error)
}

// NewFile builds a File whose content is produced by open.
func NewFile(name string, size int64, open func() (io.ReadCloser, error)) File {
	return File{Name: name, Size: size, open: open}
}

// FromBytes builds a File backed by an in-memory payload.
func FromBytes(name string, data []byte) File {
	return NewFile(name, int64(len(data)), func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	})
}

// FromPaths stats every path and returns one File per regular file, keyed by
// its base name.
func FromPaths(paths []string) ([]File, error) {
	files := make([]File, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%s is a directory", p)
		}

		path := p
		files = append(files, NewFile(filepath.Base(p), info.Size(), func() (io.ReadCloser, error) {
			return os.Open(path)
		}))
	}

	return files, nil
}

func (f File) Open() (io.ReadCloser, error) {
	if f.open == nil {
		return nil, fmt.Errorf("file %s has no content source", f.Name)
	}

	return f.open()
}

// ReadAll reads the full content of f.
func (f File) ReadAll() ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	return io.ReadAll(rc)
}
