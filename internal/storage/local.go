package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/xelth-com/esealgo/internal/apperr"
)

// Local keeps objects on disk under root/<bucket>/<path> and issues URLs
// below baseURL, which the router serves from the same directory.
type Local struct {
	root    string
	baseURL string
}

// NewLocal creates the root directory if needed
func NewLocal(root, baseURL string) (*Local, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return &Local{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// cleanKey rejects keys that would escape the bucket directory
func cleanKey(bucket, key string) (string, error) {
	if bucket == "" || strings.ContainsAny(bucket, `/\`) || bucket == ".." {
		return "", apperr.Storage(nil, "invalid bucket %q", bucket)
	}
	cleaned := path.Clean("/" + key)
	if cleaned == "/" || hasParentSegment(key) {
		return "", apperr.Storage(nil, "invalid object path %q", key)
	}
	return strings.TrimPrefix(cleaned, "/"), nil
}

// hasParentSegment reports whether any path element of key is "..".
// Both separators count.
func hasParentSegment(key string) bool {
	for _, seg := range strings.FieldsFunc(key, func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg == ".." {
			return true
		}
	}
	return false
}

func (l *Local) file(bucket, key string) string {
	return filepath.Join(l.root, bucket, filepath.FromSlash(key))
}

// Put writes the object and returns its public URL
func (l *Local) Put(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	key, err := cleanKey(bucket, key)
	if err != nil {
		return "", err
	}
	name := l.file(bucket, key)
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return "", apperr.Storage(err, "failed to prepare %s/%s", bucket, key)
	}
	if err := os.WriteFile(name, data, 0o644); err != nil {
		return "", apperr.Storage(err, "failed to write %s/%s", bucket, key)
	}
	return l.publicURL(bucket, key), nil
}

// Get reads the object
func (l *Local) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	key, err := cleanKey(bucket, key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(l.file(bucket, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperr.Storage(err, "object %s/%s does not exist", bucket, key)
	}
	if err != nil {
		return nil, apperr.Storage(err, "failed to read %s/%s", bucket, key)
	}
	return data, nil
}

// Remove deletes the object; removing a missing object is an error
func (l *Local) Remove(ctx context.Context, bucket, key string) error {
	key, err := cleanKey(bucket, key)
	if err != nil {
		return err
	}
	if err := os.Remove(l.file(bucket, key)); err != nil {
		return apperr.Storage(err, "failed to remove %s/%s", bucket, key)
	}
	return nil
}

func (l *Local) publicURL(bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return l.baseURL + "/" + bucket + "/" + strings.Join(segments, "/")
}

// PathFromURL reverses publicURL
func (l *Local) PathFromURL(bucket, publicURL string) (string, bool) {
	prefix := l.baseURL + "/" + bucket + "/"
	if !strings.HasPrefix(publicURL, prefix) {
		return "", false
	}
	key, err := url.PathUnescape(strings.TrimPrefix(publicURL, prefix))
	if err != nil || key == "" {
		return "", false
	}
	return key, true
}

// Handler serves stored objects; mount it under the URL path of baseURL
func (l *Local) Handler() http.Handler {
	return http.FileServer(http.Dir(l.root))
}
