package statement

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Staging places uploads on disk for readers that need a file path
type Staging interface {
	// Stage writes data to a temporary file. The returned release func
	// removes it and must always be called.
	Stage(filename string, data []byte) (path string, release func(), err error)
}

// TempStaging implements Staging with os.CreateTemp
type TempStaging struct {
	dir string
}

// NewTempStaging creates a TempStaging rooted at dir, or the system temp
// directory when dir is empty
func NewTempStaging(dir string) (*TempStaging, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating staging directory: %w", err)
		}
	}
	return &TempStaging{dir: dir}, nil
}

// Stage writes data to a new temp file that keeps the upload's extension
func (t *TempStaging) Stage(filename string, data []byte) (string, func(), error) {
	ext := strings.ToLower(filepath.Ext(filename))
	f, err := os.CreateTemp(t.dir, "statement-*"+ext)
	if err != nil {
		return "", func() {}, fmt.Errorf("creating temp file: %w", err)
	}
	path := f.Name()
	release := func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			slog.Warn("Failed to remove staged file", "path", path, "error", err)
		}
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		release()
		return "", func() {}, fmt.Errorf("writing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		release()
		return "", func() {}, fmt.Errorf("closing temp file: %w", err)
	}

	return path, release, nil
}
