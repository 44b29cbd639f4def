package evidence

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// FileStore writes evidence under a local directory.
type FileStore struct {
	dir    string
	logger zerolog.Logger
}

// NewFileStore creates a file-based evidence store rooted at dir.
func NewFileStore(dir string, logger zerolog.Logger) *FileStore {
	return &FileStore{
		dir:    dir,
		logger: logger.With().Str("component", "evidence-file-store").Logger(),
	}
}

// Put writes data to dir/key and returns the file path.
func (s *FileStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	target := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		s.logger.Error().Err(err).Str("file", target).Msg("failed to create evidence directory")
		return "", fmt.Errorf("failed to create evidence directory for %s: %w", key, err)
	}

	if err := os.WriteFile(target, data, 0o644); err != nil {
		s.logger.Error().Err(err).Str("file", target).Msg("failed to write evidence file")
		return "", fmt.Errorf("failed to write evidence file %s: %w", target, err)
	}

	s.logger.Debug().
		Str("file", target).
		Str("content_type", contentType).
		Int("bytes", len(data)).
		Msg("evidence stored locally")

	return target, nil
}
