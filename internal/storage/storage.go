package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

var ErrInvalidPath = errors.New("invalid storage path")

// FileStore keeps uploaded blobs under relative, slash-separated paths.
type FileStore interface {
	Save(ctx context.Context, name string, r io.Reader) (int64, error)
	Open(name string) (afero.File, error)
	Delete(ctx context.Context, name string) error
}

type Store struct {
	fs     afero.Fs
	logger *slog.Logger
}

// NewLocal roots the store at dir on the host filesystem.
func NewLocal(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media root: %w", err)
	}
	return New(afero.NewBasePathFs(afero.NewOsFs(), dir), logger), nil
}

func New(fs afero.Fs, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{fs: fs, logger: logger}
}

func (s *Store) Save(ctx context.Context, name string, r io.Reader) (int64, error) {
	clean, err := cleanPath(name)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if err := s.fs.MkdirAll(path.Dir(clean), 0o755); err != nil {
		return 0, fmt.Errorf("create directory for %s: %w", clean, err)
	}

	f, err := s.fs.Create(clean)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", clean, err)
	}
	n, copyErr := io.Copy(f, r)
	closeErr := f.Close()
	if copyErr != nil {
		_ = s.fs.Remove(clean)
		return 0, fmt.Errorf("write %s: %w", clean, copyErr)
	}
	if closeErr != nil {
		return 0, fmt.Errorf("close %s: %w", clean, closeErr)
	}

	s.logger.Info("file stored", "path", clean, "bytes", n)
	return n, nil
}

func (s *Store) Open(name string) (afero.File, error) {
	clean, err := cleanPath(name)
	if err != nil {
		return nil, err
	}
	return s.fs.Open(clean)
}

// Delete removes the file and then its directory when nothing else is left in it.
func (s *Store) Delete(ctx context.Context, name string) error {
	clean, err := cleanPath(name)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// a file that is already gone counts as released
	if err := s.fs.Remove(clean); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", clean, err)
	}

	dir := path.Dir(clean)
	if dir == "." {
		return nil
	}
	empty, err := afero.IsEmpty(s.fs, dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("inspect %s: %w", dir, err)
	}
	if empty {
		if err := s.fs.Remove(dir); err != nil {
			return fmt.Errorf("remove directory %s: %w", dir, err)
		}
	}

	s.logger.Info("file removed", "path", clean, "directory_removed", empty)
	return nil
}

// ThesisPath is where the PDF of a thesis lives.
func ThesisPath(thesisID uuid.UUID, filename string) string {
	return path.Join("theses", thesisID.String(), baseName(filename))
}

func AvatarPath(userID uuid.UUID, filename string) string {
	return path.Join("avatars", userID.String(), baseName(filename))
}

func baseName(filename string) string {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		case r == ' ':
			return '_'
		}
		return -1
	}, name)
	if name == "" || name == "." || name == ".." {
		return "file"
	}
	return name
}

func cleanPath(name string) (string, error) {
	clean := path.Clean("/" + strings.ReplaceAll(name, "\\", "/"))
	clean = strings.TrimPrefix(clean, "/")
	if clean == "" || clean == "." {
		return "", ErrInvalidPath
	}
	return clean, nil
}
