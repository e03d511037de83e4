// Package manifest persists the description of a finished build as info.json
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/google/renameio"

	"github.com/arewefastyet/jsbuild/pkg/logger"
	"github.com/arewefastyet/jsbuild/pkg/types"
)

// FileName is the fixed manifest name inside the source-tree root
const FileName = "info.json"

// ErrInvalidManifest indicates a manifest missing required fields
var ErrInvalidManifest = errors.New("invalid build manifest")

// Path returns where the manifest of the tree at dir lives
func Path(dir string) string {
	return filepath.Join(dir, FileName)
}

// Writer writes manifests atomically: readers see the previous manifest or
// the new one, never a partial file.
type Writer struct {
	logger   logger.Logger
	validate *validator.Validate
}

// NewWriter creates a manifest writer
func NewWriter(log logger.Logger) *Writer {
	if log == nil {
		log = logger.Discard()
	}
	return &Writer{
		logger:   log.WithComponent("manifest"),
		validate: validator.New(),
	}
}

// Write validates m and replaces dir/info.json with it
func (w *Writer) Write(dir string, m *types.Manifest) (string, error) {
	if m == nil {
		return "", fmt.Errorf("%w: nil manifest", ErrInvalidManifest)
	}
	if err := w.validate.Struct(m); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if !filepath.IsAbs(m.Binary) {
		return "", fmt.Errorf("%w: binary path %q is not absolute", ErrInvalidManifest, m.Binary)
	}

	dest := Path(dir)
	f, err := renameio.TempFile(dir, dest)
	if err != nil {
		return "", fmt.Errorf("creating manifest: %w", err)
	}
	defer f.Cleanup()

	if err := json.NewEncoder(f).Encode(m); err != nil {
		return "", fmt.Errorf("encoding manifest: %w", err)
	}
	if err := f.CloseAtomicallyReplace(); err != nil {
		return "", fmt.Errorf("writing %s: %w", dest, err)
	}

	w.logger.Info("Wrote manifest",
		logger.WithField("path", dest),
		logger.WithField("engine", m.EngineType),
		logger.WithField("revision", m.Revision))
	return dest, nil
}

// Read loads the manifest of the tree at dir
func Read(dir string) (*types.Manifest, error) {
	data, err := os.ReadFile(Path(dir))
	if err != nil {
		return nil, err
	}

	var m types.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", Path(dir), err)
	}
	return &m, nil
}
