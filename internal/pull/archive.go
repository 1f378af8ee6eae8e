package pull

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archive keeps the raw JSONL result file a completed bulk operation
// produced. Disabled when PULL_ARCHIVE_BUCKET is unset.
type Archive struct {
	S3     S3API
	Bucket string
}

func NewArchive(client S3API) *Archive {
	bucket := strings.TrimSpace(os.Getenv("PULL_ARCHIVE_BUCKET"))
	if bucket == "" {
		return nil
	}
	return &Archive{S3: client, Bucket: bucket}
}

func (a *Archive) Store(ctx context.Context, shop, resource, jobID string, raw []byte) (string, error) {
	key := fmt.Sprintf("bulk/%s/%s/%s.jsonl", shop, resource, jobID)
	_, err := a.S3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(raw),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return "", fmt.Errorf("archive PutObject: %w", err)
	}
	return key, nil
}
