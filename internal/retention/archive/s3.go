// Package archive stores purged records in S3 before retention deletes them.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"attest/internal/platform/config"
	"attest/internal/records"
	"attest/internal/records/export"
)

// PutObjectAPI is the part of the S3 client the archiver uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver writes each batch as one JSON object under
// prefix/category/YYYY/MM/DD/<uuid>.json.
type S3Archiver struct {
	client PutObjectAPI
	bucket string
	prefix string
	now    func() time.Time
}

// New creates an archiver over an existing client.
func New(client PutObjectAPI, bucket, prefix string) (*S3Archiver, error) {
	if client == nil {
		return nil, errors.New("s3 client is required")
	}
	if bucket == "" {
		return nil, errors.New("archive bucket is required")
	}
	return &S3Archiver{client: client, bucket: bucket, prefix: prefix, now: time.Now}, nil
}

// NewFromConfig builds an S3 client from the default AWS credential chain.
// It returns nil, nil when no bucket is configured.
func NewFromConfig(ctx context.Context, cfg config.ArchiveConfig) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return New(client, cfg.Bucket, cfg.Prefix)
}

// Archive uploads recs. An empty batch is a no-op.
func (a *S3Archiver) Archive(ctx context.Context, category string, recs []*records.LogRecord) error {
	if len(recs) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := export.Write(ctx, &buf, export.FormatJSON, recs); err != nil {
		return fmt.Errorf("encode archive batch: %w", err)
	}

	key := a.Key(category)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(a.bucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(buf.Bytes()),
		ContentType:          aws.String(export.FormatJSON.ContentType()),
		ServerSideEncryption: types.ServerSideEncryptionAes256,
		Metadata: map[string]string{
			"category": category,
			"records":  fmt.Sprint(len(recs)),
		},
	})
	if err != nil {
		return fmt.Errorf("put archive object %s: %w", key, err)
	}
	return nil
}

// Key returns a fresh object key for a batch from category.
func (a *S3Archiver) Key(category string) string {
	return path.Join(a.prefix, category, a.now().UTC().Format("2006/01/02"), uuid.NewString()+".json")
}
