// Package uploads pushes locally staged image files to S3-compatible object
// storage and returns their public URLs.
package uploads

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/userkeeper/internal/common"
	"github.com/dmitrijs2005/userkeeper/internal/filex"
	"github.com/dmitrijs2005/userkeeper/internal/logging"
	"github.com/google/uuid"
)

// Uploader stores the file at localPath and returns a URL for it. The local
// file is removed whether or not the upload succeeds.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config describes the bucket images are written to.
type S3Config struct {
	Region        string
	AccessKey     string
	SecretKey     string
	Bucket        string
	BaseEndpoint  string
	PublicBaseURL string
}

type S3Uploader struct {
	client        objectPutter
	bucket        string
	publicBaseURL string
	logger        logging.Logger
	now           func() time.Time
}

// NewS3Uploader builds the process-wide client once. Path-style addressing is
// used so MinIO endpoints work without bucket DNS.
func NewS3Uploader(ctx context.Context, cfg S3Config, logger logging.Logger) (*S3Uploader, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
		}
		o.UsePathStyle = true
	})

	return newS3Uploader(client, cfg.Bucket, cfg.PublicBaseURL, logger), nil
}

func newS3Uploader(client objectPutter, bucket, publicBaseURL string, logger logging.Logger) *S3Uploader {
	return &S3Uploader{
		client:        client,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:        logger.With("module", "uploads"),
		now:           time.Now,
	}
}

// storageKey returns images/YYYY/M/D/<uuid><ext>.
func storageKey(d time.Time, ext string) string {
	return fmt.Sprintf("images/%d/%d/%d/%v%s", d.Year(), d.Month(), d.Day(), uuid.New(), strings.ToLower(ext))
}

func (u *S3Uploader) objectURL(key string) string {
	return u.publicBaseURL + "/" + u.bucket + "/" + key
}

func (u *S3Uploader) Upload(ctx context.Context, localPath string) (url string, err error) {
	defer func() {
		if rmErr := filex.Remove(localPath); rmErr != nil {
			u.logger.Warn(ctx, "temp file cleanup failed", "path", localPath, "error", rmErr)
		}
	}()

	if localPath == "" {
		return "", common.NewDependency("upload failed", fmt.Errorf("no local file"))
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", common.NewDependency("upload failed", err)
	}
	defer f.Close()

	ext := filepath.Ext(localPath)
	key := storageKey(u.now(), ext)

	in := &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   f,
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		in.ContentType = aws.String(ct)
	}

	if _, err := u.client.PutObject(ctx, in); err != nil {
		u.logger.Error(ctx, "put object failed", "key", key, "error", err)
		return "", common.NewDependency("upload failed", err)
	}

	u.logger.Debug(ctx, "image uploaded", "key", key)
	return u.objectURL(key), nil
}
