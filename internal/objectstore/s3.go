package objectstore

import (
	"bytes"
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/pkg/errors"
)

// S3Store is an S3-compatible Store backed by minio-go, the same client the
// teacher's Azure/S3-adjacent tooling uses for object storage access.
type S3Store struct {
	client *minio.Client
	bucket string
}

// NewS3 wraps an already-constructed minio client for one bucket.
func NewS3(client *minio.Client, bucket string) *S3Store {
	return &S3Store{client: client, bucket: bucket}
}

func (s *S3Store) Head(ctx context.Context, key string) (Info, error) {
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if toErrResponse(err).Code == "NoSuchKey" {
			return Info{}, ErrNotFound
		}
		return Info{}, errors.Wrapf(err, "objectstore: head s3://%s/%s", s.bucket, key)
	}
	return Info{ETag: info.ETag, Size: uint64(info.Size), LastModified: info.LastModified}, nil
}

func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrapf(err, "objectstore: get s3://%s/%s", s.bucket, key)
	}
	defer obj.Close()

	b, err := io.ReadAll(obj)
	if err != nil {
		if toErrResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "objectstore: read s3://%s/%s", s.bucket, key)
	}
	return b, nil
}

func (s *S3Store) GetRange(ctx context.Context, key string, offset, length uint64) ([]byte, error) {
	if length == 0 {
		return nil, errors.Errorf("objectstore: zero-length range read of %q", key)
	}
	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(int64(offset), int64(offset+length-1)); err != nil {
		return nil, errors.Wrapf(err, "objectstore: set range for s3://%s/%s", s.bucket, key)
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "objectstore: get range s3://%s/%s", s.bucket, key)
	}
	defer obj.Close()

	b, err := io.ReadAll(obj)
	if err != nil {
		return nil, errors.Wrapf(err, "objectstore: read range s3://%s/%s", s.bucket, key)
	}
	return b, nil
}

func (s *S3Store) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{})
	if err != nil {
		return errors.Wrapf(err, "objectstore: put s3://%s/%s", s.bucket, key)
	}
	return nil
}

func toErrResponse(err error) minio.ErrorResponse {
	return minio.ToErrorResponse(err)
}
