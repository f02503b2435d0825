// Package media manages image assets in the media S3 bucket: uploading
// popup and banner images, listing a folder and deleting objects.
package media

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/funpik/adminconsole/pkg/shared/logging"
)

// DefaultFolder is where popup images live.
const DefaultFolder = "image/popup"

// defaultContentType is used when neither the caller nor the file
// extension gives one.
const defaultContentType = "image/jpeg"

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg"}

// Config configures the bucket.
type Config struct {
	Bucket          string `yaml:"bucket" json:"bucket"`
	Region          string `yaml:"region" json:"region"`
	AccessKeyID     string `yaml:"access_key_id" json:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" json:"secret_access_key"`
	// Endpoint overrides the S3 endpoint, e.g. for a local S3-compatible
	// server. Path-style addressing is used when set.
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	// PublicURL overrides the base of returned object URLs.
	PublicURL string `yaml:"public_url" json:"public_url"`
}

// Enabled reports whether a bucket is configured.
func (c Config) Enabled() bool {
	return c.Bucket != ""
}

// objectAPI is the subset of *s3.Client used here.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Image is a listed image object.
type Image struct {
	Key          string    `json:"key"`
	URL          string    `json:"url"`
	FileName     string    `json:"file_name"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// Bucket is the media bucket.
type Bucket struct {
	client  objectAPI
	bucket  string
	baseURL string
	now     func() time.Time
	logger  logging.Logger
}

// NewBucket creates a Bucket from cfg. Without static credentials requests
// are sent unsigned.
func NewBucket(cfg Config, logger logging.Logger) (*Bucket, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}
	logger = logger.WithModule("media")

	awsCfg := aws.Config{Region: cfg.Region}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	} else {
		logger.Warn("No AWS credentials configured, requests will be anonymous")
		awsCfg.Credentials = aws.AnonymousCredentials{}
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	logger.Debug("Media bucket ready", "bucket", cfg.Bucket, "region", cfg.Region, "endpoint", cfg.Endpoint)
	return newBucket(client, cfg, time.Now, logger), nil
}

func newBucket(client objectAPI, cfg Config, now func() time.Time, logger logging.Logger) *Bucket {
	return &Bucket{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: baseURL(cfg),
		now:     now,
		logger:  logger,
	}
}

// baseURL is the prefix of public object URLs.
func baseURL(cfg Config) string {
	switch {
	case cfg.PublicURL != "":
		return strings.TrimSuffix(cfg.PublicURL, "/")
	case cfg.Endpoint != "":
		return strings.TrimSuffix(cfg.Endpoint, "/") + "/" + cfg.Bucket
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
}

// URL returns the public URL of key.
func (b *Bucket) URL(key string) string {
	return b.baseURL + "/" + key
}

// Upload stores body under "<folder>/<unix-ms>_<name>" where name is
// fileName with every character outside [a-zA-Z0-9._-] replaced by "_".
// It returns the object's public URL.
func (b *Bucket) Upload(ctx context.Context, folder, fileName string, body io.Reader, contentType string) (string, error) {
	if folder == "" {
		folder = DefaultFolder
	}
	key := fmt.Sprintf("%s/%d_%s", strings.TrimSuffix(folder, "/"), b.now().UnixMilli(), SanitizeFileName(fileName))

	if contentType == "" {
		contentType = mime.TypeByExtension(strings.ToLower(path.Ext(fileName)))
	}
	if contentType == "" {
		contentType = defaultContentType
	}

	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", &StorageError{Op: "upload", Key: key, Err: mapError(err)}
	}

	b.logger.Info("Uploaded image", "key", key, "content_type", contentType)
	return b.URL(key), nil
}

// List returns the images directly or indirectly under folder, newest
// first. Folder markers and non-image objects are skipped.
func (b *Bucket) List(ctx context.Context, folder string) ([]Image, error) {
	if folder == "" {
		folder = DefaultFolder
	}
	prefix := strings.TrimSuffix(folder, "/") + "/"

	var images []Image
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, &StorageError{Op: "list", Key: prefix, Err: mapError(err)}
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") || !IsImage(key) {
				continue
			}
			images = append(images, Image{
				Key:          key,
				URL:          b.URL(key),
				FileName:     path.Base(key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}

	slices.SortStableFunc(images, newestFirst)
	b.logger.Debug("Listed images", "prefix", prefix, "count", len(images))
	return images, nil
}

// Delete removes key. Deleting a missing key succeeds.
func (b *Bucket) Delete(ctx context.Context, key string) error {
	if key == "" || strings.Contains(key, "..") {
		return &StorageError{Op: "delete", Key: key, Err: ErrInvalidKey}
	}

	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return &StorageError{Op: "delete", Key: key, Err: mapError(err)}
	}

	b.logger.Info("Deleted image", "key", key)
	return nil
}

// newestFirst orders images by LastModified descending, undated ones last.
func newestFirst(a, b Image) int {
	az, bz := a.LastModified.IsZero(), b.LastModified.IsZero()
	switch {
	case az && bz:
		return 0
	case az:
		return 1
	case bz:
		return -1
	}
	return b.LastModified.Compare(a.LastModified)
}

// SanitizeFileName replaces every character outside [a-zA-Z0-9._-] with "_".
func SanitizeFileName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, name)
}

// IsImage reports whether key has an image extension.
func IsImage(key string) bool {
	return slices.Contains(imageExtensions, strings.ToLower(path.Ext(key)))
}
