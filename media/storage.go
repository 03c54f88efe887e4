package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidKey is returned for keys that do not name a stored object.
var ErrInvalidKey = errors.New("media: invalid key")

// Object is a stored blob.
type Object struct {
	Key         string
	URL         string
	ContentType string
	Size        int64
}

// Storage keeps uploaded blobs. Keys are generated by the storage.
type Storage interface {
	Put(ctx context.Context, name, contentType string, r io.Reader) (Object, error)
	// Delete removes the blob; a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// LocalDisk stores blobs as files under Root and serves them below BaseURL.
type LocalDisk struct {
	root    string
	baseURL string
}

var _ Storage = (*LocalDisk)(nil)

// NewLocalDisk creates root if needed. baseURL is the public prefix the
// HTTP layer serves the directory under, e.g. "/media".
func NewLocalDisk(root, baseURL string) (*LocalDisk, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve media root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("prepare media root: %w", err)
	}
	return &LocalDisk{root: abs, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (d *LocalDisk) Root() string {
	return d.root
}

func (d *LocalDisk) Put(ctx context.Context, name, contentType string, r io.Reader) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	key := uuid.NewString() + extension(name)

	f, err := os.CreateTemp(d.root, ".upload-*")
	if err != nil {
		return Object{}, err
	}
	tmp := f.Name()
	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp, filepath.Join(d.root, key))
	}
	if err != nil {
		_ = os.Remove(tmp)
		return Object{}, fmt.Errorf("store %s: %w", name, err)
	}

	return Object{
		Key:         key,
		URL:         d.baseURL + "/" + key,
		ContentType: contentType,
		Size:        size,
	}, nil
}

func (d *LocalDisk) Delete(_ context.Context, key string) error {
	if !validKey(key) {
		return ErrInvalidKey
	}
	err := os.Remove(filepath.Join(d.root, key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Handler serves stored files. Directory listings and temp files are hidden.
func (d *LocalDisk) Handler() http.Handler {
	files := http.FileServer(http.Dir(d.root))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if !validKey(key) {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		files.ServeHTTP(w, r)
	})
}

func validKey(key string) bool {
	return key != "" && !strings.HasPrefix(key, ".") && !strings.ContainsAny(key, `/\`)
}

// extension keeps a short alphanumeric suffix of the client file name.
func extension(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) < 2 || len(ext) > 6 {
		return ""
	}
	for _, c := range ext[1:] {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return ""
		}
	}
	return ext
}
