package storage

import (
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/studio-b12/gowebdav"

	"github.com/luzzle/luzzle/internal/apperr"
)

// WebDAV implements Provider backed by a remote WebDAV share.
type WebDAV struct {
	client *gowebdav.Client
	root   string // path prefix on the remote, always "/"-rooted
}

// NewWebDAV creates a WebDAV provider for the share at url, rooted at root.
// It verifies connectivity before returning.
func NewWebDAV(url, username, password, root string) (*WebDAV, error) {
	c := gowebdav.NewClient(url, username, password)
	if err := c.Connect(); err != nil {
		return nil, fmt.Errorf("storage: webdav connect %s: %w", url, err)
	}
	return &WebDAV{client: c, root: "/" + strings.Trim(root, "/")}, nil
}

// safePath resolves a relative path against the remote root and rejects
// traversal outside it.
func (w *WebDAV) safePath(rel string) (string, error) {
	if strings.HasPrefix(rel, "/") {
		return "", fmt.Errorf("storage: %s: %w", rel, apperr.ErrPathEscape)
	}
	joined := path.Clean(path.Join(w.root, rel))
	if joined != w.root && !strings.HasPrefix(joined, w.root+"/") {
		return "", fmt.Errorf("storage: %s: %w", rel, apperr.ErrPathEscape)
	}
	return joined, nil
}

// List walks dir on the remote and returns metadata for every file.
func (w *WebDAV) List(dir string) ([]FileInfo, error) {
	base, err := w.safePath(dir)
	if err != nil {
		return nil, err
	}
	var out []FileInfo
	if err := w.walk(base, &out); err != nil {
		return nil, fmt.Errorf("storage: webdav list: %w", err)
	}
	return out, nil
}

func (w *WebDAV) walk(abs string, out *[]FileInfo) error {
	entries, err := w.client.ReadDir(abs)
	if err != nil {
		return err
	}
	for _, e := range entries {
		child := path.Join(abs, e.Name())
		if e.IsDir() {
			if err := w.walk(child, out); err != nil {
				return err
			}
			continue
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(child, w.root), "/")
		*out = append(*out, FileInfo{Path: rel, Size: e.Size(), ModTime: e.ModTime()})
	}
	return nil
}

// Read returns the raw bytes of a remote file.
func (w *WebDAV) Read(p string) ([]byte, error) {
	abs, err := w.safePath(p)
	if err != nil {
		return nil, err
	}
	data, err := w.client.Read(abs)
	if gowebdav.IsErrNotFound(err) {
		return nil, fmt.Errorf("storage: %s: %w", p, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: webdav read %s: %w", p, err)
	}
	return data, nil
}

// Write writes content to a remote file, creating parent collections.
func (w *WebDAV) Write(p string, content []byte) error {
	abs, err := w.safePath(p)
	if err != nil {
		return err
	}
	if err := w.client.MkdirAll(path.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("storage: webdav mkdir: %w", err)
	}
	if err := w.client.Write(abs, content, 0o644); err != nil {
		return fmt.Errorf("storage: webdav write %s: %w", p, err)
	}
	return nil
}

// Stat returns metadata for a single remote file.
func (w *WebDAV) Stat(p string) (FileInfo, error) {
	abs, err := w.safePath(p)
	if err != nil {
		return FileInfo{}, err
	}
	info, err := w.client.Stat(abs)
	if gowebdav.IsErrNotFound(err) {
		return FileInfo{}, fmt.Errorf("storage: %s: %w", p, apperr.ErrNotFound)
	}
	if err != nil {
		return FileInfo{}, fmt.Errorf("storage: webdav stat %s: %w", p, err)
	}
	return FileInfo{Path: p, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// Exists reports whether a remote path exists.
func (w *WebDAV) Exists(p string) (bool, error) {
	abs, err := w.safePath(p)
	if err != nil {
		return false, err
	}
	if _, err := w.client.Stat(abs); gowebdav.IsErrNotFound(err) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("storage: webdav stat %s: %w", p, err)
	}
	return true, nil
}

// Delete removes a remote file. Deleting an already-absent file succeeds.
func (w *WebDAV) Delete(p string) error {
	abs, err := w.safePath(p)
	if err != nil {
		return err
	}
	if err := w.client.Remove(abs); err != nil && !gowebdav.IsErrNotFound(err) {
		return fmt.Errorf("storage: webdav delete %s: %w", p, err)
	}
	return nil
}

// OpenRead opens a remote file for streaming reads.
func (w *WebDAV) OpenRead(p string) (io.ReadCloser, error) {
	abs, err := w.safePath(p)
	if err != nil {
		return nil, err
	}
	rc, err := w.client.ReadStream(abs)
	if gowebdav.IsErrNotFound(err) {
		return nil, fmt.Errorf("storage: %s: %w", p, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: webdav open %s: %w", p, err)
	}
	return rc, nil
}

// OpenWrite streams r into a remote file.
func (w *WebDAV) OpenWrite(p string, r io.Reader) error {
	abs, err := w.safePath(p)
	if err != nil {
		return err
	}
	if err := w.client.MkdirAll(path.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("storage: webdav mkdir: %w", err)
	}
	if err := w.client.WriteStream(abs, r, 0o644); err != nil {
		return fmt.Errorf("storage: webdav write %s: %w", p, err)
	}
	return nil
}
