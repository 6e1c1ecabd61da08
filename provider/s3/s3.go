// Package s3 uploads merged videos to an S3 bucket and returns their
// public URL.
package s3

import (
	"context"
	"fmt"
	"os"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/google/uuid"

	"github.com/beroca11/video-orchestrator/config"
	"github.com/beroca11/video-orchestrator/media"
	"github.com/beroca11/video-orchestrator/provider"
)

// Uploader pushes files to the configured bucket. It satisfies
// provider.Uploader.
type Uploader struct {
	cfg      *config.Storage
	uploader *s3manager.Uploader
}

// New builds an Uploader from configuration.
func New(cfg *config.Storage) (*Uploader, error) {
	if cfg == nil || cfg.Bucket == "" {
		return nil, provider.InvalidConfigError("s3: missing bucket")
	}
	sess, err := session.NewSession(&aws.Config{Region: aws.String(cfg.Region)})
	if err != nil {
		return nil, fmt.Errorf("creating aws session: %w", err)
	}
	return &Uploader{cfg: cfg, uploader: s3manager.NewUploader(sess)}, nil
}

func (u *Uploader) Upload(ctx context.Context, f *media.File) (*provider.Upload, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, provider.Errorf(provider.ClassStorageError, "opening %s: %v", f.Path, err)
	}
	defer file.Close()

	key := path.Join(u.cfg.KeyPrefix, uuid.New().String()+".mp4")
	_, err = u.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(u.cfg.Bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String("video/mp4"),
	})
	if err != nil {
		return nil, provider.Errorf(provider.ClassStorageError, "uploading to s3: %v", err)
	}

	return &provider.Upload{
		URL:  fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.cfg.Bucket, u.cfg.Region, key),
		Size: f.Size,
	}, nil
}
