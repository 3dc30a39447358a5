package folder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNoneSelected is returned when no target folder has been chosen
var ErrNoneSelected = errors.New("no folder selected")

// Folder is a writable destination for exported files
type Folder interface {
	Name() string
	WriteFile(name string, data []byte) error
}

// Dir is a Folder backed by a local directory
type Dir struct {
	path string
}

// OpenDir returns a Dir for an existing directory
func OpenDir(path string) (*Dir, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve folder path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to open folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", abs)
	}
	return &Dir{path: abs}, nil
}

// Name returns the absolute directory path
func (d *Dir) Name() string {
	return d.path
}

// WriteFile creates name inside the directory. Names must not contain path
// separators. An existing file is never replaced: the error then matches
// fs.ErrExist.
func (d *Dir) WriteFile(name string, data []byte) error {
	if name == "" || filepath.Base(name) != name || name == "." || name == ".." {
		return fmt.Errorf("invalid file name %q", name)
	}
	path := filepath.Join(d.path, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

// Picker turns a folder request into a Folder
type Picker interface {
	Pick(ctx context.Context, requested string) (Folder, error)
}

// DirPicker resolves requests to local directories. An empty request falls
// back to Default.
type DirPicker struct {
	Default string
	Create  bool
}

// Pick opens the requested directory, creating it when allowed
func (p DirPicker) Pick(ctx context.Context, requested string) (Folder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := requested
	if path == "" {
		path = p.Default
	}
	if path == "" {
		return nil, ErrNoneSelected
	}
	if p.Create {
		if err := os.MkdirAll(path, 0755); err != nil {
			return nil, fmt.Errorf("failed to create folder: %w", err)
		}
	}
	return OpenDir(path)
}
