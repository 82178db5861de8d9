package publish

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Uploader is the part of *manager.Uploader used here.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3 uploads with the multipart upload manager. Credentials and region come
// from the default AWS configuration chain.
type S3 struct {
	target   Target
	uploader Uploader
}

// NewS3 loads the default AWS configuration and builds an uploader.
func NewS3(ctx context.Context, t Target, opts Options) (*S3, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	uploader := manager.NewUploader(s3.NewFromConfig(cfg), func(u *manager.Uploader) {
		if opts.PartSize > 0 {
			u.PartSize = opts.PartSize
		}
	})
	return NewS3WithUploader(t, uploader), nil
}

// NewS3WithUploader wires an existing uploader.
func NewS3WithUploader(t Target, u Uploader) *S3 {
	return &S3{target: t, uploader: u}
}

func (p *S3) Publish(ctx context.Context, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	key := p.target.objectKey(localPath)
	_, err = p.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.target.Bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType(localPath)),
	})
	if err != nil {
		return fmt.Errorf("upload s3://%s/%s: %w", p.target.Bucket, key, err)
	}
	return nil
}
