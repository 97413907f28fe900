// Package media stores downloaded image bytes as objects on an afero
// filesystem: the local disk in production, memory in tests.
package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// ImagePath returns the object path of an image: images/<mediaID>.<subtype>.
func ImagePath(mediaID, mimeType string) string {
	ext := mimeType
	if _, subtype, ok := strings.Cut(mimeType, "/"); ok {
		ext = subtype
	}
	// Drop parameters such as "; codecs=...".
	ext, _, _ = strings.Cut(ext, ";")
	return fmt.Sprintf("images/%s.%s", mediaID, strings.TrimSpace(ext))
}

// Store writes objects under a root.
type Store struct {
	fs     afero.Fs
	logger *slog.Logger
}

// NewStore wraps an existing filesystem.
func NewStore(fs afero.Fs, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{fs: fs, logger: logger.With("component", "media_store")}
}

// NewDiskStore stores objects below root on the local disk.
func NewDiskStore(root string, logger *slog.Logger) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("media root cannot be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media root %s: %w", root, err)
	}
	return NewStore(afero.NewBasePathFs(afero.NewOsFs(), root), logger), nil
}

// Store writes data to objectPath, replacing any previous object.
func (s *Store) Store(ctx context.Context, objectPath string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	clean := path.Clean("/" + objectPath)
	if clean == "/" {
		return fmt.Errorf("invalid object path %q", objectPath)
	}

	if err := s.fs.MkdirAll(path.Dir(clean), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", clean, err)
	}
	if err := afero.WriteFile(s.fs, clean, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", clean, err)
	}

	s.logger.DebugContext(ctx, "Object stored", "path", clean, "bytes", len(data))
	return nil
}

