// Package s3 implements the s3 scheme backend on AWS S3.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/errors"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/storage"
)

// Store writes objects under a bucket and key prefix.
type Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// New builds a backend from the ambient AWS credential chain.
func New(ctx context.Context, bucket, prefix string) (storage.Backend, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "loading AWS configuration")
	}
	client := s3.NewFromConfig(cfg)
	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeConnection, "bucket %s is not accessible", bucket)
	}
	return storage.NewBackend(&Store{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   prefix,
	}), nil
}

func (s *Store) objectKey(key string) string {
	return path.Join(s.prefix, key)
}

func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return errors.Wrapf(err, errors.ErrorTypeStorage, "uploading %s", key)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeStorage, "downloading %s", key)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeStorage, "reading %s", key)
	}
	return data, nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if strings.Contains(err.Error(), "NotFound") || strings.Contains(err.Error(), "404") {
			return false, nil
		}
		return false, errors.Wrapf(err, errors.ErrorTypeStorage, "head %s", key)
	}
	return true, nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	full := s.objectKey(prefix)
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(full),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeStorage, "listing %s", prefix)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if s.prefix != "" {
				key = strings.TrimPrefix(strings.TrimPrefix(key, s.prefix), "/")
			}
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (s *Store) FullPath(key string) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, s.objectKey(key))
}

func init() {
	storage.MustRegister("s3", func(ctx context.Context, u *storage.URL) (storage.Backend, error) {
		return New(ctx, u.Bucket, u.Path)
	})
}
