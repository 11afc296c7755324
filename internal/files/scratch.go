package files

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	apperrors "alkalytics/internal/errors"
	"alkalytics/internal/validation"
)

// Upload is one file of an upload request. Content is base64, optionally
// prefixed with a data URL header.
type Upload struct {
	Name    string
	Content string
}

// File is a decoded upload on disk
type File struct {
	// Name is the sanitized client filename, used as the sheet's source id.
	Name string
	Path string
	Size int64
}

// Scratch is a temporary directory owned by a single request.
type Scratch struct {
	dir    string
	logger *slog.Logger

	mu     sync.Mutex
	used   map[string]bool
	closed bool
}

// NewScratch creates a fresh directory under baseDir. An empty baseDir uses
// the system temp directory.
func NewScratch(baseDir string, logger *slog.Logger) (*Scratch, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if baseDir != "" {
		if err := os.MkdirAll(baseDir, 0755); err != nil {
			return nil, apperrors.NewStorageError("failed to create scratch base directory", err)
		}
	}
	dir, err := os.MkdirTemp(baseDir, "upload-*")
	if err != nil {
		return nil, apperrors.NewStorageError("failed to create scratch directory", err)
	}
	logger.Debug("Scratch directory created", slog.String("dir", dir))
	return &Scratch{dir: dir, logger: logger, used: make(map[string]bool)}, nil
}

// Dir returns the scratch directory path
func (s *Scratch) Dir() string { return s.dir }

// Write stores data under the sanitized name and returns the file.
func (s *Scratch) Write(name string, data []byte) (File, error) {
	f, err := s.reserve(name)
	if err != nil {
		return File{}, err
	}
	return s.write(f, data)
}

// DecodeAll decodes every upload into the scratch directory. Decoding runs
// concurrently; the result keeps the order of uploads. The first failure
// cancels the remaining work and is returned.
func (s *Scratch) DecodeAll(ctx context.Context, uploads []Upload) ([]File, error) {
	out := make([]File, len(uploads))
	for i, u := range uploads {
		f, err := s.reserve(u.Name)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}

	g, ctx := errgroup.WithContext(ctx)
	for i, u := range uploads {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := DecodeBase64(u.Content)
			if err != nil {
				return apperrors.NewValidationErr(fmt.Sprintf("file %q is not valid base64", u.Name)).
					WithContext("filename", u.Name)
			}
			f, err := s.write(out[i], data)
			if err != nil {
				return err
			}
			out[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Close removes the directory and everything in it. Calling Close more than
// once is safe.
func (s *Scratch) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := os.RemoveAll(s.dir); err != nil {
		s.logger.Error("Failed to remove scratch directory",
			slog.String("dir", s.dir),
			slog.String("error", err.Error()))
		return err
	}
	s.logger.Debug("Scratch directory removed", slog.String("dir", s.dir))
	return nil
}

// reserve picks a unique path for name inside the directory.
func (s *Scratch) reserve(name string) (File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return File{}, fmt.Errorf("scratch directory %s is closed", s.dir)
	}

	clean := validation.SanitizeFilename(name)
	disk := clean
	for n := 1; s.used[disk]; n++ {
		disk = fmt.Sprintf("%d_%s", n, clean)
	}
	s.used[disk] = true
	return File{Name: clean, Path: filepath.Join(s.dir, disk)}, nil
}

func (s *Scratch) write(f File, data []byte) (File, error) {
	if err := os.WriteFile(f.Path, data, 0600); err != nil {
		return File{}, apperrors.NewStorageError("failed to write upload", err).WithContext("filename", f.Name)
	}
	f.Size = int64(len(data))
	return f, nil
}

// DecodeBase64 decodes standard base64, padded or not, after stripping an
// optional "data:<mime>;base64," prefix and whitespace.
func DecodeBase64(content string) ([]byte, error) {
	if strings.HasPrefix(content, "data:") {
		if i := strings.Index(content, ","); i >= 0 {
			content = content[i+1:]
		}
	}
	content = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, content)

	if data, err := base64.StdEncoding.DecodeString(content); err == nil {
		return data, nil
	}
	return base64.RawStdEncoding.DecodeString(content)
}
