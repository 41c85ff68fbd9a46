package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/globalmind/support-platform/pkg/logging"
)

// S3API is the subset of the S3 client used by Backup.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Snapshot is one backup object. Payloads in the snapshot stay encrypted;
// backups are as opaque as the live rows.
type Snapshot struct {
	TakenAt       time.Time            `json:"taken_at"`
	Conversations []ConversationRecord `json:"conversations"`
}

// Backup writes encrypted conversation snapshots to S3.
type Backup struct {
	bucket   string
	s3Client S3API
	logger   *logging.Logger
}

// NewBackup creates a Backup. If bucket is empty, all operations are no-ops.
func NewBackup(s3Client S3API, bucket string, logger *logging.Logger) *Backup {
	if logger == nil {
		logger = logging.Default()
	}
	return &Backup{bucket: bucket, s3Client: s3Client, logger: logger}
}

// Enabled returns true if backup is configured (bucket is set).
func (b *Backup) Enabled() bool {
	return b != nil && b.bucket != "" && b.s3Client != nil
}

// Write stores one snapshot keyed by date and timestamp. Returns the object
// key, "" when backups are disabled.
func (b *Backup) Write(ctx context.Context, snap *Snapshot) (string, error) {
	if !b.Enabled() {
		return "", nil
	}
	if snap.TakenAt.IsZero() {
		snap.TakenAt = time.Now().UTC()
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("store: marshal snapshot: %w", err)
	}

	now := snap.TakenAt
	key := fmt.Sprintf("snapshots/v1/%d/%02d/%02d/%s.json",
		now.Year(), now.Month(), now.Day(), now.Format("150405"))

	_, err = b.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("store: s3 put %s: %w", key, err)
	}

	b.logger.Info("backup snapshot written",
		"s3_key", key,
		"conversations", len(snap.Conversations),
	)
	return key, nil
}
