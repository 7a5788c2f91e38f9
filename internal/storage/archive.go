// Package storage keeps raw provider payloads in object storage so a sync can
// be replayed or audited later.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/storefront-analytics/internal/config"
)

// Archiver stores one raw provider response body.
type Archiver interface {
	Archive(ctx context.Context, provider, resource string, at time.Time, body []byte) error
}

// NewArchiver returns an S3 archiver when a bucket and credentials are
// configured and a no-op archiver otherwise.
func NewArchiver(cfg config.AWSConfig, log logrus.FieldLogger) (Archiver, error) {
	if cfg.S3Bucket == "" || cfg.AccessKeyID == "" {
		log.Info("Snapshot archive disabled, no S3 bucket configured")
		return NopArchiver{}, nil
	}

	// Create AWS session
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return NewS3Archiver(s3.New(sess), cfg.S3Bucket, cfg.S3Prefix, log), nil
}

type NopArchiver struct{}

func (NopArchiver) Archive(context.Context, string, string, time.Time, []byte) error {
	return nil
}

type S3Archiver struct {
	client s3iface.S3API
	bucket string
	prefix string
	log    logrus.FieldLogger
}

func NewS3Archiver(client s3iface.S3API, bucket, prefix string, log logrus.FieldLogger) *S3Archiver {
	return &S3Archiver{
		client: client,
		bucket: bucket,
		prefix: prefix,
		log:    log.WithField("operation", "snapshot-archive"),
	}
}

func (a *S3Archiver) Archive(ctx context.Context, provider, resource string, at time.Time, body []byte) error {
	key := SnapshotKey(a.prefix, provider, resource, at)

	_, err := a.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		Metadata: map[string]*string{
			"provider": aws.String(provider),
			"resource": aws.String(resource),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload snapshot %s: %w", key, err)
	}

	a.log.WithFields(logrus.Fields{
		"key":  key,
		"size": len(body),
	}).Debug("Archived provider snapshot")
	return nil
}

// SnapshotKey lays snapshots out by provider and UTC day.
func SnapshotKey(prefix, provider, resource string, at time.Time) string {
	at = at.UTC()
	return path.Join(
		prefix,
		provider,
		at.Format("2006"),
		at.Format("01"),
		at.Format("02"),
		fmt.Sprintf("%s-%d.json", resource, at.Unix()),
	)
}
