package packaging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/floodhapi/rofsw-extract/internal/domain"
)

// Store resolves packaged archive references to files in the output
// directory. References are bare ".zip" filenames as reported in a job
// result; anything else is rejected before touching the filesystem.
type Store struct {
	dir string
}

// NewStore creates a Store over the given output directory.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Resolve validates an archive reference and returns its path. Unknown
// names, path traversal attempts and non-archive extensions all yield
// KindInputNotFound; the caller learns nothing about the directory layout.
func (s *Store) Resolve(name string) (string, error) {
	if !strings.HasSuffix(name, ".zip") || filepath.Base(name) != name {
		return "", notFound(name)
	}
	path := filepath.Join(s.dir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", notFound(name)
	}
	return path, nil
}

// Open opens a stored archive for streaming to a consumer.
func (s *Store) Open(name string) (*os.File, error) {
	path, err := s.Resolve(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, notFound(name)
	}
	return f, nil
}

func notFound(name string) error {
	return domain.NewError(domain.KindInputNotFound, fmt.Sprintf("archive %q not found", name))
}
