package source

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/graphfuse/graphfuse/pkg/convert"
	"github.com/graphfuse/graphfuse/pkg/domain"
)

// FileSystem serves documents from local paths. Each configured path
// may be a single file or a directory, which is walked recursively.
type FileSystem struct {
	paths []string
}

func NewFileSystem(paths []string) *FileSystem {
	cleaned := make([]string, 0, len(paths))
	for _, p := range paths {
		if p = StripQuotes(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return &FileSystem{paths: cleaned}
}

// StripQuotes removes surrounding single or double quotation marks that
// survive copy-pasting paths from shells and file managers.
func StripQuotes(p string) string {
	p = strings.TrimSpace(p)
	for len(p) >= 2 {
		first, last := p[0], p[len(p)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			p = p[1 : len(p)-1]
			continue
		}
		break
	}
	return p
}

func (f *FileSystem) Enumerate(ctx context.Context) ([]domain.DocumentRef, error) {
	var refs []domain.DocumentRef

	for _, root := range f.paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("%w: cannot access %s: %v", domain.ErrInvalidInput, root, err)
		}

		if !info.IsDir() {
			refs = append(refs, fileRef(root, info))
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
				return nil
			}
			// Directory walks skip what cannot be converted; a path
			// naming a file directly still surfaces the format error.
			if !convert.Supported(d.Name()) {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			refs = append(refs, fileRef(path, info))
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("%w: walking %s: %v", domain.ErrInvalidInput, root, err)
		}
	}

	return refs, nil
}

func (f *FileSystem) Fetch(ctx context.Context, ref domain.DocumentRef) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(ref.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", domain.ErrInvalidInput, ref.Path, err)
	}
	return data, nil
}

func fileRef(path string, info fs.FileInfo) domain.DocumentRef {
	return domain.DocumentRef{
		ID:   path,
		Name: filepath.Base(path),
		Path: path,
		Size: info.Size(),
	}
}
