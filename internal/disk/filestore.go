package disk

import (
	"fmt"
	"os"
)

// FileStore backs a Store with a regular file.
type FileStore struct {
	file *os.File
	path string
}

// OpenFileStore opens or creates the file at path and grows it to at least
// size bytes. Growth through Truncate is zero-filled by the OS.
func OpenFileStore(path string, size int64) (*FileStore, error) {
	if size < 0 {
		return nil, fmt.Errorf("store size must be non-negative, got %d", size)
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open store %s: %w", path, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat store %s: %w", path, err)
	}
	if info.Size() < size {
		if err := file.Truncate(size); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to presize store %s: %w", path, err)
		}
	}

	return &FileStore{file: file, path: path}, nil
}

func (f *FileStore) ReadAt(p []byte, off int64) (int, error) {
	return f.file.ReadAt(p, off)
}

func (f *FileStore) WriteAt(p []byte, off int64) (int, error) {
	return f.file.WriteAt(p, off)
}

func (f *FileStore) Length() (int64, error) {
	info, err := f.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat store %s: %w", f.path, err)
	}
	return info.Size(), nil
}

func (f *FileStore) Truncate(size int64) error {
	return f.file.Truncate(size)
}

func (f *FileStore) Sync() error {
	return f.file.Sync()
}

func (f *FileStore) Close() error {
	return f.file.Close()
}

// Path returns the backing file path.
func (f *FileStore) Path() string { return f.path }
