package media

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

var (
	// ErrNotFound is returned when an object does not exist.
	ErrNotFound = errors.New("media: object not found")
	// ErrBucketNotFound is returned when the configured bucket does not exist.
	ErrBucketNotFound = errors.New("media: bucket not found")
	// ErrAccessDenied is returned when the credentials lack permission.
	ErrAccessDenied = errors.New("media: access denied")
	// ErrInvalidKey is returned for empty keys and keys containing "..".
	ErrInvalidKey = errors.New("media: invalid key")
	// ErrNotConfigured is returned when no bucket is configured.
	ErrNotConfigured = errors.New("media: bucket not configured")
)

// StorageError wraps a failed bucket operation.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("media %s %q: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("media %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// mapError converts SDK errors to the package sentinels where possible.
func mapError(err error) error {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return ErrNotFound
	}
	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &noSuchBucket) {
		return ErrBucketNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return ErrNotFound
		case "NoSuchBucket":
			return ErrBucketNotFound
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return ErrAccessDenied
		}
	}

	var status interface{ HTTPStatusCode() int }
	if errors.As(err, &status) {
		switch status.HTTPStatusCode() {
		case http.StatusNotFound:
			return ErrNotFound
		case http.StatusForbidden:
			return ErrAccessDenied
		}
	}
	return err
}
