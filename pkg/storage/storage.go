// Package storage provides the artifact store behind every job: a
// Backend per URL scheme (local filesystem, S3, GCS) resolved through
// the same registry mechanism as sources and models, plus the
// job-scoped JobStore the pipeline writes through.
package storage

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/errors"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/registry"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/table"
)

// Backend reads and writes typed artifacts under a storage location.
// Paths are always relative, slash-separated keys; FullPath renders the
// absolute location for manifests and log lines.
type Backend interface {
	WriteJSON(ctx context.Context, path string, v interface{}) error
	WriteYAML(ctx context.Context, path string, v interface{}) error
	WriteParquet(ctx context.Context, path string, tbl *table.Table) error
	ReadJSON(ctx context.Context, path string, out interface{}) error
	ReadYAML(ctx context.Context, path string, out interface{}) error
	ReadParquet(ctx context.Context, path string) (*table.Table, error)
	Exists(ctx context.Context, path string) (bool, error)
	List(ctx context.Context, prefix string) ([]string, error)
	FullPath(path string) string
}

// ObjectStore is the raw byte surface a scheme implementation provides.
// The codec wrapper turns it into a full Backend so every scheme shares
// one set of serialization rules.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]string, error)
	FullPath(key string) string
}

// Factory builds a backend for a parsed storage URL.
type Factory func(ctx context.Context, u *URL) (Backend, error)

var backends = registry.New[Factory]("storage backend")

// Register adds a backend factory for a URL scheme.
func Register(scheme string, factory Factory) error {
	return backends.Register(scheme, factory)
}

// MustRegister registers from init functions.
func MustRegister(scheme string, factory Factory) {
	backends.MustRegister(scheme, factory)
}

// Names lists the registered schemes.
func Names() []string {
	return backends.Names()
}

// URL is a parsed storage location.
type URL struct {
	Scheme string
	Bucket string
	Path   string
}

// ParseURL normalizes a storage URL. Bare paths like "./data" resolve
// to the file scheme; "gs://" is accepted as an alias for "gcs://".
func ParseURL(raw string) (*URL, error) {
	if raw == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "storage URL is empty")
	}
	if !strings.Contains(raw, "://") {
		return &URL{Scheme: "file", Path: raw}, nil
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeValidation, "storage URL %q", raw)
	}
	scheme := parsed.Scheme
	if scheme == "gs" {
		scheme = "gcs"
	}
	switch scheme {
	case "file":
		return &URL{Scheme: "file", Path: parsed.Host + parsed.Path}, nil
	default:
		if parsed.Host == "" {
			return nil, errors.Newf(errors.ErrorTypeValidation, "storage URL %q has no bucket", raw)
		}
		return &URL{
			Scheme: scheme,
			Bucket: parsed.Host,
			Path:   strings.Trim(parsed.Path, "/"),
		}, nil
	}
}

// Open resolves a storage URL to a ready backend.
func Open(ctx context.Context, raw string) (Backend, error) {
	u, err := ParseURL(raw)
	if err != nil {
		return nil, err
	}
	factory, err := backends.Get(u.Scheme)
	if err != nil {
		return nil, err
	}
	backend, err := factory(ctx, u)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeConnection, "opening %s storage", u.Scheme)
	}
	return backend, nil
}

// NewBackend wraps an object store with the shared codecs.
func NewBackend(store ObjectStore) Backend {
	return &codecBackend{store: store}
}

type codecBackend struct {
	store ObjectStore
}

func (b *codecBackend) WriteJSON(ctx context.Context, path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrapf(err, errors.ErrorTypeStorage, "encoding %s", path)
	}
	return b.store.Put(ctx, path, data)
}

func (b *codecBackend) WriteYAML(ctx context.Context, path string, v interface{}) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, errors.ErrorTypeStorage, "encoding %s", path)
	}
	return b.store.Put(ctx, path, data)
}

func (b *codecBackend) WriteParquet(ctx context.Context, path string, tbl *table.Table) error {
	var buf bytes.Buffer
	if err := tbl.WriteParquet(&buf); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeStorage, "encoding %s", path)
	}
	return b.store.Put(ctx, path, buf.Bytes())
}

func (b *codecBackend) ReadJSON(ctx context.Context, path string, out interface{}) error {
	data, err := b.store.Get(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeStorage, "decoding %s", path)
	}
	return nil
}

func (b *codecBackend) ReadYAML(ctx context.Context, path string, out interface{}) error {
	data, err := b.store.Get(ctx, path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeStorage, "decoding %s", path)
	}
	return nil
}

func (b *codecBackend) ReadParquet(ctx context.Context, path string) (*table.Table, error) {
	data, err := b.store.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	tbl, err := table.ReadParquet(data)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeStorage, "decoding %s", path)
	}
	return tbl, nil
}

func (b *codecBackend) Exists(ctx context.Context, path string) (bool, error) {
	return b.store.Exists(ctx, path)
}

func (b *codecBackend) List(ctx context.Context, prefix string) ([]string, error) {
	return b.store.List(ctx, prefix)
}

func (b *codecBackend) FullPath(path string) string {
	return b.store.FullPath(path)
}
