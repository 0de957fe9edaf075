// Package feedarchive stores the raw bytes of every downloaded feed document
// in object storage before parsing. The archive is the replay source for
// parser fixes: a document that failed to parse can be re-fed without another
// round-trip to the feed host. Archival is best-effort and never blocks the
// sync pipeline.
package feedarchive

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/fiber/v2/log"
)

// Archiver receives raw feed documents. Implementations must be safe for
// concurrent use by the scheduler's workers.
type Archiver interface {
	Archive(ctx context.Context, lineID int, sailDate time.Time, file string, data []byte)
}

// NoopArchiver drops every document; used when archival is not configured.
type NoopArchiver struct{}

func (NoopArchiver) Archive(context.Context, int, time.Time, string, []byte) {}

// Client archives raw documents to an S3-compatible bucket.
type Client struct {
	s3Client *s3.Client
	config   *Config
}

// NewFromEnv builds an archiver from the environment, falling back to a noop
// when archival is disabled or misconfigured (misconfiguration is an error).
func NewFromEnv() (Archiver, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.IsEnabled() {
		log.Info("[FeedArchive] Disabled, raw documents will not be retained")
		return NoopArchiver{}, nil
	}
	return NewClient(cfg)
}

// NewClient creates an S3 archiver.
func NewClient(cfg *Config) (*Client, error) {
	if !cfg.IsEnabled() {
		return nil, fmt.Errorf("feed archival is disabled")
	}

	awsConfig, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		}
	})

	client := &Client{s3Client: s3Client, config: cfg}
	log.Infof("[FeedArchive] Initialized for bucket %s", cfg.BucketName)
	return client, nil
}

// Archive uploads one raw document. Failures are logged and swallowed: the
// archive never gates the pipeline.
func (c *Client) Archive(ctx context.Context, lineID int, sailDate time.Time, file string, data []byte) {
	key := c.config.ObjectKey(lineID, sailDate, file)

	_, err := c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.config.BucketName),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(data))),
		Metadata: map[string]string{
			"upload-source": "cruisesync",
		},
	})
	if err != nil {
		log.Warnf("[FeedArchive] Failed to archive %s: %v", key, err)
		return
	}
	log.Debugf("[FeedArchive] Archived s3://%s/%s (%d bytes)", c.config.BucketName, key, len(data))
}
