// Package archive persists approved articles to S3-compatible object
// storage for long-term retention. Archiving is optional: without a
// configured bucket the pipeline simply skips it.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	log "github.com/sirupsen/logrus"

	"newswire/config"
	"newswire/types"
)

const keyPrefix = "articles/"

// ObjectPutter is the slice of the S3 API the archiver needs, narrow enough
// to fake in tests.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver writes one JSON object per approved article.
type Archiver struct {
	client ObjectPutter
	bucket string
}

// New wires an explicit client and bucket.
func New(client ObjectPutter, bucket string) *Archiver {
	return &Archiver{client: client, bucket: bucket}
}

// NewFromEnv builds an archiver from ARCHIVE_S3_BUCKET and the standard AWS
// configuration chain. Returns (nil, nil) when no bucket is configured.
func NewFromEnv(ctx context.Context) (*Archiver, error) {
	bucket := config.GetArchiveBucket()
	if bucket == "" {
		return nil, nil
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if region := config.GetArchiveRegion(); region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = config.GetEnvOrDefault("ARCHIVE_S3_PATH_STYLE", "false") == "true"
	})

	log.WithField("bucket", bucket).Info("✅ article archiver enabled")
	return New(client, bucket), nil
}

// Archive uploads the article as JSON under articles/<id>.json. Re-archiving
// the same article overwrites the object.
func (ar *Archiver) Archive(ctx context.Context, a types.Article) error {
	body, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode article %s: %w", a.ID, err)
	}

	_, err = ar.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(ar.bucket),
		Key:         aws.String(keyPrefix + a.ID + ".json"),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("upload article %s: %w", a.ID, err)
	}

	log.WithFields(log.Fields{"article_id": a.ID, "bucket": ar.bucket}).Debug("article archived")
	return nil
}
