// Package filesystem serves "fs" locations: local text files whose
// blank-line separated paragraphs are the content segments.
//
// The raw id is a file path. When a root is configured, relative paths are
// resolved against it and paths escaping it are rejected.
package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ca-shen98/knoba/internal/connectors"
	"github.com/ca-shen98/knoba/internal/core/domain"
	"github.com/ca-shen98/knoba/internal/core/ports/driven"
	"github.com/ca-shen98/knoba/internal/logger"
)

// Verify interface compliance.
var (
	_ driven.ContentSource = (*Connector)(nil)
	_ driven.ContentWriter = (*Connector)(nil)
)

// Connector reads and rewrites paragraphs of local files.
type Connector struct {
	root  string
	locks connectors.KeyedMutex
}

// New creates a filesystem connector. An empty root allows any absolute path.
func New(root string) *Connector {
	if root != "" {
		root = filepath.Clean(root)
	}
	return &Connector{root: root}
}

// Type returns the location source type.
func (c *Connector) Type() string {
	return domain.SourceFilesystem
}

// Fetch returns the paragraphs of the file.
func (c *Connector) Fetch(ctx context.Context, rawID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := c.resolve(rawID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: file %s", domain.ErrNotFound, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return connectors.SplitParagraphs(string(data)), nil
}

// Apply replaces every paragraph equal to priorContent with newContent.
// The file is rewritten atomically and keeps its permissions.
func (c *Connector) Apply(ctx context.Context, rawID, newContent, priorContent string) (domain.WriteStatus, error) {
	if strings.TrimSpace(priorContent) == "" {
		return domain.WriteFailed, domain.ErrPriorContentRequired
	}
	if strings.TrimSpace(newContent) == strings.TrimSpace(priorContent) {
		return domain.WriteUnchanged, nil
	}
	if err := ctx.Err(); err != nil {
		return domain.WriteFailed, err
	}
	path, err := c.resolve(rawID)
	if err != nil {
		return domain.WriteFailed, err
	}

	unlock := c.locks.Lock(path)
	defer unlock()

	info, err := os.Stat(path)
	if err != nil {
		return domain.WriteFailed, fmt.Errorf("stat %s: %w", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.WriteFailed, fmt.Errorf("read %s: %w", path, err)
	}

	updated, n := connectors.ReplaceParagraph(string(data), priorContent, newContent)
	if n == 0 {
		logger.Debug("fs: no paragraph in %s matches prior content", path)
		return domain.WriteUnchanged, nil
	}

	if err := writeFileAtomic(path, []byte(updated), info.Mode().Perm()); err != nil {
		return domain.WriteFailed, err
	}
	logger.Debug("fs: replaced %d paragraph(s) in %s", n, path)
	return domain.WriteApplied, nil
}

// resolve maps a raw id to a cleaned path confined to the root.
func (c *Connector) resolve(rawID string) (string, error) {
	path := filepath.Clean(rawID)
	if c.root == "" {
		if !filepath.IsAbs(path) {
			return "", fmt.Errorf("%w: fs path %q must be absolute when no root is configured",
				domain.ErrInvalidInput, rawID)
		}
		return path, nil
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(c.root, path)
	}
	rel, err := filepath.Rel(c.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: fs path %q is outside %s", domain.ErrInvalidInput, rawID, c.root)
	}
	return path, nil
}

// writeFileAtomic writes to a temp file in the same directory and renames it
// over path.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".knoba-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
