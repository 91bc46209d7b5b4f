package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/leeforge/recipemedia/errors"
	"github.com/leeforge/recipemedia/utils"
)

// LocalProvider is a directory on the local filesystem that derivatives are
// written into and removed from.
type LocalProvider struct {
	dir string
}

// NewLocalProvider creates dir (recursively) when missing and verifies that
// files can be created inside it.
func NewLocalProvider(dir string) (*LocalProvider, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.NewDestinationNotWritable(dir, fmt.Errorf("empty directory path"))
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.NewDestinationNotWritable(dir, err)
	}
	if err := utils.CreateDir(abs); err != nil {
		return nil, errors.NewDestinationNotWritable(abs, err)
	}
	if err := utils.CheckWritable(abs); err != nil {
		return nil, errors.NewDestinationNotWritable(abs, err)
	}
	return &LocalProvider{dir: abs}, nil
}

// Dir returns the absolute directory path.
func (p *LocalProvider) Dir() string {
	return p.dir
}

// Path joins name onto the provider directory. Names containing a path
// separator are reduced to their last element.
func (p *LocalProvider) Path(name string) string {
	return filepath.Join(p.dir, filepath.Base(name))
}

// Exists reports whether name is a regular file in the directory.
func (p *LocalProvider) Exists(ctx context.Context, name string) (bool, error) {
	isDir, ok, err := utils.Exists(p.Path(name))
	if err != nil {
		return false, err
	}
	return ok && !isDir, nil
}

// Delete removes name. A missing file is not an error; the boolean reports
// whether something was actually removed.
func (p *LocalProvider) Delete(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	err := os.Remove(p.Path(name))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to delete file: %w", err)
}

func (p *LocalProvider) Name() string {
	return "local"
}
