package sink

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"

	"github.com/consorcioops/boleto-batch/internal/config"
)

// ArtifactStore uploads produced documents to durable storage. Uploads are
// best-effort: a failed upload never fails the record that produced the
// document.
type ArtifactStore interface {
	Upload(ctx context.Context, name string, body []byte, referenceDate time.Time) (string, error)
}

// S3Store stores documents in an S3 bucket, filed under year/month prefixes
// derived from the document's reference date.
type S3Store struct {
	client        *s3.Client
	bucket        string
	prefix        string
	yearMonthKeys bool
	logger        *logrus.Logger
}

// NewS3Store creates a new S3-backed artifact store
func NewS3Store(ctx context.Context, cfg config.StorageConfig, logger *logrus.Logger) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("sink: load AWS config: %w", err)
	}

	return &S3Store{
		client:        s3.NewFromConfig(awsCfg),
		bucket:        cfg.Bucket,
		prefix:        cfg.Prefix,
		yearMonthKeys: cfg.UseYearMonthKeys,
		logger:        logger,
	}, nil
}

// Upload stores the document and returns its object key
func (s *S3Store) Upload(ctx context.Context, name string, body []byte, referenceDate time.Time) (string, error) {
	key := s.objectKey(name, referenceDate)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/pdf"),
	})
	if err != nil {
		return "", fmt.Errorf("sink: upload %s: %w", key, err)
	}

	s.logger.WithFields(logrus.Fields{
		"bucket": s.bucket,
		"key":    key,
		"bytes":  len(body),
	}).Info("Document uploaded to artifact store")
	return key, nil
}

func (s *S3Store) objectKey(name string, referenceDate time.Time) string {
	if s.yearMonthKeys {
		return path.Join(s.prefix, referenceDate.Format("2006"), referenceDate.Format("01"), name)
	}
	return path.Join(s.prefix, name)
}
