// Package vault exposes a directory of markdown notes as a FileStore and a
// LinkIndex. Paths are vault-relative and slash separated.
package vault

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure Vault implements the interfaces.
var (
	_ driven.FileStore = (*Vault)(nil)
	_ driven.LinkIndex = (*Vault)(nil)
)

// ErrClosed is returned by Watch after Close.
var ErrClosed = errors.New("vault closed")

// Vault is a note directory with an in-memory link index.
type Vault struct {
	root string

	mu    sync.RWMutex
	index *index

	watchMu sync.Mutex
	watcher *fsnotify.Watcher
	closed  bool
}

// Open scans root and builds the link index.
func Open(ctx context.Context, root string) (*Vault, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("root path error: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("root path error: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path error: %s is not a directory", abs)
	}

	v := &Vault{root: abs}
	if err := v.Refresh(ctx); err != nil {
		return nil, err
	}
	return v, nil
}

// Root returns the absolute vault directory.
func (v *Vault) Root() string {
	return v.root
}

// Refresh rescans the vault and replaces the link index.
func (v *Vault) Refresh(ctx context.Context) error {
	idx, err := buildIndex(ctx, v.root)
	if err != nil {
		return err
	}

	v.mu.Lock()
	v.index = idx
	v.mu.Unlock()

	logger.Debug("Indexed vault %s: %d files, %d notes", v.root, len(idx.files), len(idx.links))
	return nil
}

// Files returns every indexed file path, sorted.
func (v *Vault) Files() []string {
	return v.current().sortedFiles()
}

// Rel converts an absolute or working-directory path to a vault path.
// Paths that are already vault-relative are cleaned and returned.
func (v *Vault) Rel(p string) (string, error) {
	if !filepath.IsAbs(p) {
		if _, ok := v.current().files[cleanPath(p)]; ok {
			return cleanPath(p), nil
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return "", err
		}
		p = abs
	}
	rel, err := filepath.Rel(v.root, p)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%w: %s is outside the vault", domain.ErrInvalidInput, p)
	}
	return rel, nil
}

// ReadText returns the content of a vault file.
func (v *Vault) ReadText(ctx context.Context, p string) (string, error) {
	data, err := v.ReadBinary(ctx, p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ReadBinary returns the raw bytes of a vault file.
func (v *Vault) ReadBinary(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := v.abs(p)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", p, domain.ErrNotFound)
		}
		return nil, err
	}
	return data, nil
}

// Stat returns the file timestamps. CreateTime is the birth time where the
// platform records one, else the inode change time, else the modification
// time.
func (v *Vault) Stat(ctx context.Context, p string) (domain.FileStat, error) {
	if err := ctx.Err(); err != nil {
		return domain.FileStat{}, err
	}
	full, err := v.abs(p)
	if err != nil {
		return domain.FileStat{}, err
	}

	info, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.FileStat{}, fmt.Errorf("%s: %w", p, domain.ErrNotFound)
		}
		return domain.FileStat{}, err
	}
	if info.IsDir() {
		return domain.FileStat{}, fmt.Errorf("%w: %s is a directory", domain.ErrInvalidInput, p)
	}

	return domain.FileStat{
		ModTime:    info.ModTime(),
		CreateTime: createTime(info),
	}, nil
}

// ResolveLink resolves link text written in fromPath. Resolution tries the
// exact vault path, then the path with ".md" added, then a case-insensitive
// file name match anywhere in the vault, preferring the shortest path.
func (v *Vault) ResolveLink(link, fromPath string) (string, bool) {
	return v.current().resolve(link, fromPath)
}

// Backlinks returns the notes linking to p, keyed by source path.
func (v *Vault) Backlinks(p string) map[string][]string {
	sources := v.current().backlinks[cleanPath(p)]
	out := make(map[string][]string, len(sources))
	for source, links := range sources {
		out[source] = append([]string(nil), links...)
	}
	return out
}

// Close stops any running watcher. It is safe to call more than once.
func (v *Vault) Close() error {
	v.watchMu.Lock()
	defer v.watchMu.Unlock()

	if v.closed {
		return nil
	}
	v.closed = true
	if v.watcher != nil {
		return v.watcher.Close()
	}
	return nil
}

func (v *Vault) current() *index {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.index
}

// abs maps a vault path to a filesystem path inside the root.
func (v *Vault) abs(p string) (string, error) {
	clean := cleanPath(p)
	if clean == "" || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: path %q is outside the vault", domain.ErrInvalidInput, p)
	}
	return filepath.Join(v.root, filepath.FromSlash(clean)), nil
}

func cleanPath(p string) string {
	clean := path.Clean(filepath.ToSlash(p))
	clean = strings.TrimPrefix(clean, "/")
	if clean == "." {
		return ""
	}
	return clean
}

// isHidden reports whether any element of p starts with a dot.
func isHidden(p string) bool {
	for _, part := range strings.Split(filepath.ToSlash(p), "/") {
		if len(part) > 1 && strings.HasPrefix(part, ".") && part != ".." {
			return true
		}
	}
	return false
}
