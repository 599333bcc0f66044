// Package gcs implements the gcs scheme backend on Google Cloud
// Storage.
package gcs

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	gstorage "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/errors"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/storage"
)

// Store writes objects under a bucket and key prefix.
type Store struct {
	bucket *gstorage.BucketHandle
	name   string
	prefix string
}

// New builds a backend from application default credentials.
func New(ctx context.Context, bucket, prefix string) (storage.Backend, error) {
	client, err := gstorage.NewClient(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "creating GCS client")
	}
	handle := client.Bucket(bucket)
	if _, err := handle.Attrs(ctx); err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeConnection, "bucket %s is not accessible", bucket)
	}
	return storage.NewBackend(&Store{bucket: handle, name: bucket, prefix: prefix}), nil
}

func (s *Store) objectKey(key string) string {
	return path.Join(s.prefix, key)
}

func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	w := s.bucket.Object(s.objectKey(key)).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return errors.Wrapf(err, errors.ErrorTypeStorage, "writing %s", key)
	}
	if err := w.Close(); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeStorage, "finalizing %s", key)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := s.bucket.Object(s.objectKey(key)).NewReader(ctx)
	if err != nil {
		if err == gstorage.ErrObjectNotExist {
			return nil, errors.Newf(errors.ErrorTypeStorage, "object %s does not exist", key)
		}
		return nil, errors.Wrapf(err, errors.ErrorTypeStorage, "opening %s", key)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeStorage, "reading %s", key)
	}
	return data, nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.bucket.Object(s.objectKey(key)).Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if err == gstorage.ErrObjectNotExist {
		return false, nil
	}
	return false, errors.Wrapf(err, errors.ErrorTypeStorage, "stat %s", key)
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	it := s.bucket.Objects(ctx, &gstorage.Query{Prefix: s.objectKey(prefix)})
	var keys []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeStorage, "listing %s", prefix)
		}
		key := attrs.Name
		if s.prefix != "" {
			key = strings.TrimPrefix(strings.TrimPrefix(key, s.prefix), "/")
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (s *Store) FullPath(key string) string {
	return fmt.Sprintf("gcs://%s/%s", s.name, s.objectKey(key))
}

func init() {
	storage.MustRegister("gcs", func(ctx context.Context, u *storage.URL) (storage.Backend, error) {
		return New(ctx, u.Bucket, u.Path)
	})
}
