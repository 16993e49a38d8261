package cache

import (
	"errors"
	"io/fs"
	"os"

	"focusdisplay/internal/config"
)

// FileSlot keeps the record in a single file, replaced atomically on write.
type FileSlot struct {
	Path string
}

func (f FileSlot) Read() ([]byte, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return data, err
}

func (f FileSlot) Write(data []byte) error {
	return config.WriteFileAtomic(f.Path, data, 0o600)
}
