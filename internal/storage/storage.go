// Package storage moves input and output images between the local disk and
// S3-compatible object storage addressed as s3://bucket/key.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"panel-extract/internal/logger"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

const scheme = "s3://"

// ErrBadLocation is returned for malformed s3:// URIs.
var ErrBadLocation = errors.New("invalid s3 location")

// Location is an object in a bucket.
type Location struct {
	Bucket string
	Key    string
}

func (l Location) String() string {
	return scheme + l.Bucket + "/" + l.Key
}

// IsRemote reports whether path is an s3:// URI.
func IsRemote(path string) bool {
	return strings.HasPrefix(path, scheme)
}

// ParseLocation splits s3://bucket/key.
func ParseLocation(uri string) (Location, error) {
	if !IsRemote(uri) {
		return Location{}, fmt.Errorf("%w: %q lacks the %s prefix", ErrBadLocation, uri, scheme)
	}
	rest := strings.TrimPrefix(uri, scheme)
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" || strings.HasSuffix(key, "/") {
		return Location{}, fmt.Errorf("%w: %q", ErrBadLocation, uri)
	}
	return Location{Bucket: bucket, Key: key}, nil
}

// S3 is a connection to an S3-compatible service.
type S3 struct {
	sess       *session.Session
	downloader *s3manager.Downloader
	uploader   *s3manager.Uploader
	log        *logger.Logger
}

// NewS3 sets up a session. A non-empty endpoint selects a non-AWS service
// (Wasabi, MinIO) with path-style addressing.
func NewS3(endpoint, region string, log *logger.Logger) (*S3, error) {
	if log == nil {
		log = logger.Nop()
	}
	cfg := &aws.Config{Region: aws.String(region)}
	if endpoint != "" {
		cfg.Endpoint = aws.String(endpoint)
		cfg.S3ForcePathStyle = aws.Bool(true)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to set up s3 session: %w", err)
	}
	return &S3{
		sess:       sess,
		downloader: s3manager.NewDownloader(sess),
		uploader:   s3manager.NewUploader(sess),
		log:        log,
	}, nil
}

// Download writes the object at loc to path.
func (s *S3) Download(ctx context.Context, loc Location, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	n, err := s.downloader.DownloadWithContext(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("failed to download %s: %w", loc, err)
	}
	s.log.Debug("storage", "downloaded", map[string]interface{}{"location": loc.String(), "bytes": n})
	return nil
}

// Upload stores the file at path under loc.
func (s *S3) Upload(ctx context.Context, path string, loc Location) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", loc, err)
	}
	s.log.Debug("storage", "uploaded", map[string]interface{}{"location": loc.String()})
	return nil
}

// Fetch returns a local path for input. s3:// inputs are downloaded into
// dir keeping the key's base name; local paths are returned unchanged.
func (s *S3) Fetch(ctx context.Context, input, dir string) (string, error) {
	if !IsRemote(input) {
		return input, nil
	}
	loc, err := ParseLocation(input)
	if err != nil {
		return "", err
	}
	local := filepath.Join(dir, filepath.Base(loc.Key))
	if err := s.Download(ctx, loc, local); err != nil {
		return "", err
	}
	return local, nil
}

// Publish uploads local to output when output is an s3:// URI; otherwise
// it does nothing.
func (s *S3) Publish(ctx context.Context, local, output string) error {
	if !IsRemote(output) {
		return nil
	}
	loc, err := ParseLocation(output)
	if err != nil {
		return err
	}
	return s.Upload(ctx, local, loc)
}

// StagingPath returns where output is written locally before Publish: the
// path itself for local outputs, a file in dir for remote ones.
func StagingPath(output, dir string) (string, error) {
	if !IsRemote(output) {
		return output, nil
	}
	loc, err := ParseLocation(output)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "out-"+filepath.Base(loc.Key)), nil
}
