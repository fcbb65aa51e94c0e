package storage

import (
	"bytes"
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"

	"motorwatch/internal/config"
)

// S3Backend uploads to an S3-compatible bucket (Supabase storage, MinIO, AWS).
type S3Backend struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Backend builds a path-style client for config.StorageEndpoint.
func NewS3Backend(config *config.Config) (*S3Backend, error) {
	if config.StorageEndpoint == "" {
		return nil, errors.New("storage endpoint is not configured")
	}
	if config.StorageBucket == "" {
		return nil, errors.New("storage bucket is not configured")
	}

	client := s3.New(s3.Options{
		Region:           config.StorageRegion,
		Credentials:      aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, "")),
		BaseEndpoint:     aws.String(config.StorageEndpoint),
		UsePathStyle:     true,
		RetryMaxAttempts: 1,
	})

	prefix := strings.Trim(config.StoragePrefix, "/")
	if prefix != "" {
		prefix += "/"
	}

	return &S3Backend{client: client, bucket: config.StorageBucket, prefix: prefix}, nil
}

func (b *S3Backend) Name() string { return "s3:" + b.bucket }

// Put uploads data as a single PutObject call.
func (b *S3Backend) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	objectKey := b.prefix + key
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(objectKey),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to put object %s", objectKey)
	}
	return b.bucket + "/" + objectKey, nil
}
