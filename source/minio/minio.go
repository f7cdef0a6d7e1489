// Package minio provides a dataset source for MinIO and other S3-compatible
// object stores via the MinIO client.
//
// Register it during process-wide setup:
//
//	src := minio.New(client)
//	source.RegisterScheme("s3", src)
//
// Blob names follow the "bucket/key" convention used by source.Resolve.
package minio

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"

	"github.com/csrow/csrow/source"
)

// Source implements source.Source for S3-compatible storage.
type Source struct {
	client *minio.Client
}

// New creates a source from an existing MinIO client.
func New(client *minio.Client) *Source {
	return &Source{client: client}
}

func splitName(name string) (bucket, key string, err error) {
	bucket, key, ok := strings.Cut(strings.TrimPrefix(name, "/"), "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("minio: blob name %q is not bucket/key", name)
	}
	return bucket, key, nil
}

// Open verifies the object exists and returns a ranged-read handle.
func (s *Source) Open(ctx context.Context, name string) (source.Blob, error) {
	bucket, key, err := splitName(name)
	if err != nil {
		return nil, err
	}
	info, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NotFound" {
			return nil, source.ErrNotFound
		}
		return nil, err
	}
	return &minioBlob{
		client: s.client,
		bucket: bucket,
		key:    key,
		size:   info.Size,
	}, nil
}

type minioBlob struct {
	client *minio.Client
	bucket string
	key    string
	size   int64
}

func (b *minioBlob) Size() int64 {
	return b.size
}

func (b *minioBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	if off >= b.size || length <= 0 {
		return io.NopCloser(strings.NewReader("")), nil
	}
	end := off + length - 1
	if end >= b.size {
		end = b.size - 1
	}
	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(off, end); err != nil {
		return nil, err
	}
	obj, err := b.client.GetObject(ctx, b.bucket, b.key, opts)
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func (b *minioBlob) Close() error {
	return nil
}
