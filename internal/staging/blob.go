package staging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pharmaguard-client/internal/domain"
)

// FileBlob is a staged file backed by a path on disk.
type FileBlob struct {
	path string
	size int64
}

// NewFileBlob stats path and returns a blob for it.
func NewFileBlob(path string) (*FileBlob, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return &FileBlob{path: path, size: info.Size()}, nil
}

// Name returns the base name of the file.
func (b *FileBlob) Name() string { return filepath.Base(b.path) }

// Size returns the size observed when the blob was created.
func (b *FileBlob) Size() int64 { return b.size }

// Open opens the file for reading.
func (b *FileBlob) Open() (io.ReadCloser, error) { return os.Open(b.path) }

// MemoryBlob is a staged file held in memory.
type MemoryBlob struct {
	name string
	data []byte
}

// NewMemoryBlob returns a blob named name holding data.
func NewMemoryBlob(name string, data []byte) *MemoryBlob {
	return &MemoryBlob{name: name, data: data}
}

// Name returns the file name.
func (b *MemoryBlob) Name() string { return b.name }

// Size returns len(data).
func (b *MemoryBlob) Size() int64 { return int64(len(b.data)) }

// Open returns a reader over the data.
func (b *MemoryBlob) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.data)), nil
}

var (
	_ domain.Blob = (*FileBlob)(nil)
	_ domain.Blob = (*MemoryBlob)(nil)
)
