package updatemanager

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// Metadata identifies the host application an update manager works for. It
// is constructed once at manager creation and never mutated.
type Metadata struct {
	// Name is the storage namespace of the application. When empty it
	// defaults to the executable's base name without extension.
	Name string
	// Version is the currently installed version.
	Version *goversion.Version
	// FilePath is the absolute path of the application's executable.
	FilePath string
}

// NewMetadata builds metadata for an explicit executable path.
func NewMetadata(name, filePath string, v *goversion.Version) (Metadata, error) {
	if filePath == "" {
		return Metadata{}, fmt.Errorf("executable file path cannot be empty")
	}
	if v == nil {
		return Metadata{}, fmt.Errorf("version cannot be nil")
	}

	abs, err := filepath.Abs(filePath)
	if err != nil {
		return Metadata{}, fmt.Errorf("resolve executable path: %w", err)
	}

	if name == "" {
		base := filepath.Base(abs)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}

	return Metadata{Name: name, Version: v, FilePath: abs}, nil
}

// SelfMetadata builds metadata for the currently running executable.
func SelfMetadata(name string, v *goversion.Version) (Metadata, error) {
	exe, err := os.Executable()
	if err != nil {
		return Metadata{}, fmt.Errorf("resolve executable: %w", err)
	}
	return NewMetadata(name, exe, v)
}
