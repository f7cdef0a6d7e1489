// Package s3 provides a dataset source backed by Amazon S3 via the AWS SDK.
//
// Register it during process-wide setup:
//
//	src, err := s3.NewFromConfig(ctx)
//	if err != nil { ... }
//	source.RegisterScheme("s3", src)
//
// Blob names follow the "bucket/key" convention used by source.Resolve for
// s3://bucket/key URIs.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/csrow/csrow/source"
)

// Source implements source.Source for S3.
type Source struct {
	client *s3.Client
}

// New creates an S3 source from an existing client.
func New(client *s3.Client) *Source {
	return &Source{client: client}
}

// NewFromConfig creates an S3 source using the default AWS configuration
// chain (environment, shared config, instance role).
func NewFromConfig(ctx context.Context, optFns ...func(*config.LoadOptions) error) (*Source, error) {
	cfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, err
	}
	return New(s3.NewFromConfig(cfg)), nil
}

func splitName(name string) (bucket, key string, err error) {
	bucket, key, ok := strings.Cut(strings.TrimPrefix(name, "/"), "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3: blob name %q is not bucket/key", name)
	}
	return bucket, key, nil
}

// Open verifies the object exists and returns a ranged-read handle.
func (s *Source) Open(ctx context.Context, name string) (source.Blob, error) {
	bucket, key, err := splitName(name)
	if err != nil {
		return nil, err
	}
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return nil, source.ErrNotFound
		}
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, source.ErrNotFound
		}
		return nil, err
	}
	return &s3Blob{
		client: s.client,
		bucket: bucket,
		key:    key,
		size:   aws.ToInt64(head.ContentLength),
	}, nil
}

// Download fetches a whole object into w using the transfer manager's
// parallel ranged downloader. Useful for staging a remote dataset onto
// local disk before mmap loading.
func (s *Source) Download(ctx context.Context, name string, w io.WriterAt) (int64, error) {
	bucket, key, err := splitName(name)
	if err != nil {
		return 0, err
	}
	downloader := manager.NewDownloader(s.client)
	return downloader.Download(ctx, w, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
}

type s3Blob struct {
	client *s3.Client
	bucket string
	key    string
	size   int64
}

func (b *s3Blob) Size() int64 {
	return b.size
}

func (b *s3Blob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	if off >= b.size || length <= 0 {
		return io.NopCloser(strings.NewReader("")), nil
	}
	end := off + length - 1
	if end >= b.size {
		end = b.size - 1
	}
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", off, end)),
	})
	if err != nil {
		return nil, err
	}
	return out.Body, nil
}

func (b *s3Blob) Close() error {
	return nil
}
