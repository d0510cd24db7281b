// Package filex reads user-picked files for upload.
package filex

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/agita-app/agita/internal/common"
)

// ReadLimited returns the base name and contents of the file at path. Files
// larger than maxBytes are rejected from their size on disk, before any byte
// is read; maxBytes <= 0 disables the check.
func ReadLimited(path string, maxBytes int64) (string, []byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return "", nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if fi.IsDir() {
		return "", nil, common.NewValidationError("file", "path", path+" is a directory")
	}
	if maxBytes > 0 && fi.Size() > maxBytes {
		return "", nil, common.NewValidationError("file", "size",
			fmt.Sprintf("%d bytes exceeds limit of %d bytes", fi.Size(), maxBytes))
	}

	r := io.Reader(f)
	if maxBytes > 0 {
		// the file may grow between Stat and Read
		r = io.LimitReader(f, maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", nil, fmt.Errorf("read %s: %w", path, err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return "", nil, common.NewValidationError("file", "size",
			fmt.Sprintf("exceeds limit of %d bytes", maxBytes))
	}
	return filepath.Base(path), data, nil
}
