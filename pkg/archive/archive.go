// Package archive stores completed batch reports in S3 as JSON objects,
// giving batch runs a durable audit trail.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/theory-cloud/listtheory/pkg/operation"
)

// S3API is the narrow S3 surface the archiver needs.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver writes reports to an S3 bucket under
// <prefix>/<yyyy-mm-dd>/<run-id>.json.
type Archiver struct {
	api    S3API
	bucket string
	prefix string
	log    *zap.Logger
	now    func() time.Time
}

// New creates an archiver for the given bucket.
func New(api S3API, bucket string) *Archiver {
	return &Archiver{
		api:    api,
		bucket: bucket,
		prefix: "batch-reports",
		log:    zap.NewNop(),
		now:    time.Now,
	}
}

// WithPrefix overrides the default key prefix.
func (a *Archiver) WithPrefix(prefix string) *Archiver {
	if prefix != "" {
		a.prefix = prefix
	}
	return a
}

// WithLogger sets the archiver's logger.
func (a *Archiver) WithLogger(log *zap.Logger) *Archiver {
	if log != nil {
		a.log = log
	}
	return a
}

// StoreReport writes one report as a JSON object. Each call gets a fresh
// run ID, so reports are never overwritten.
func (a *Archiver) StoreReport(ctx context.Context, report *operation.Report) error {
	if report == nil {
		return fmt.Errorf("report is nil")
	}

	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	key := path.Join(a.prefix, a.now().UTC().Format("2006-01-02"), uuid.NewString()+".json")

	_, err = a.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to archive report to s3://%s/%s: %w", a.bucket, key, err)
	}

	a.log.Debug("archived batch report",
		zap.String("bucket", a.bucket),
		zap.String("key", key),
		zap.Int("operations", report.TotalOperations))
	return nil
}
