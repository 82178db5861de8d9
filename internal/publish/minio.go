package publish

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// FilePutter is the part of *minio.Client used here.
type FilePutter interface {
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Minio uploads to MinIO or any S3-compatible endpoint.
type Minio struct {
	target Target
	client FilePutter
	opts   Options
}

// NewMinio connects to the target endpoint with static credentials.
func NewMinio(t Target, opts Options) (*Minio, error) {
	client, err := minio.New(t.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client %s: %w", t.Endpoint, err)
	}
	return NewMinioWithClient(t, client, opts), nil
}

// NewMinioWithClient wires an existing client.
func NewMinioWithClient(t Target, c FilePutter, opts Options) *Minio {
	return &Minio{target: t, client: c, opts: opts}
}

func (p *Minio) Publish(ctx context.Context, localPath string) error {
	key := p.target.objectKey(localPath)
	_, err := p.client.FPutObject(ctx, p.target.Bucket, key, localPath, minio.PutObjectOptions{
		ContentType: contentType(localPath),
		PartSize:    uint64(max(p.opts.PartSize, 0)),
	})
	if err != nil {
		return fmt.Errorf("upload minio://%s/%s/%s: %w", p.target.Endpoint, p.target.Bucket, key, err)
	}
	return nil
}
