package render

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// RenderError is returned when a document cannot be produced from the
// clipped features.
type RenderError struct {
	Format string
	Reason string
	Err    error
}

func (e *RenderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("render %s: %s: %v", e.Format, e.Reason, e.Err)
	}
	return fmt.Sprintf("render %s: %s", e.Format, e.Reason)
}

func (e *RenderError) Unwrap() error { return e.Err }

// WriteFile persists a rendered document so that readers never observe a
// partially written file.
func WriteFile(path string, doc *bytes.Buffer) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("render: create %s: %w", dir, err)
		}
	}
	if err := renameio.WriteFile(path, doc.Bytes(), 0o644); err != nil {
		return fmt.Errorf("render: write %s: %w", path, err)
	}
	return nil
}
