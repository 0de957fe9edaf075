package feedarchive

import (
	"errors"
	"fmt"
	"time"

	"github.com/tidewave/cruisesync/internal/pkg/env"
)

// Config holds raw feed document archival configuration.
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	Enabled         bool
}

// LoadConfig loads archival configuration from environment variables.
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "us-east-1"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		Enabled:         env.GetEnv("FEED_ARCHIVE_ENABLED", "false") == "true",
	}

	if config.Enabled {
		if config.AccessKeyID == "" {
			return nil, errors.New("S3_ACCESS_KEY_ID is required when feed archival is enabled")
		}
		if config.SecretAccessKey == "" {
			return nil, errors.New("S3_SECRET_ACCESS_KEY is required when feed archival is enabled")
		}
		if config.BucketName == "" {
			return nil, errors.New("S3_BUCKET_NAME is required when feed archival is enabled")
		}
	}

	return config, nil
}

// IsEnabled returns true if feed archival is enabled.
func (c *Config) IsEnabled() bool {
	return c.Enabled
}

// ObjectKey generates the archive key for a downloaded document.
// Format: feeds/<lineID>/<year>/<month>/<file>
func (c *Config) ObjectKey(lineID int, sailDate time.Time, file string) string {
	return fmt.Sprintf("feeds/%d/%04d/%02d/%s", lineID, sailDate.Year(), int(sailDate.Month()), file)
}
