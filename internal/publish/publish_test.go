package publish

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		raw  string
		want Target
		err  bool
	}{
		{raw: "s3://tiles/dem/out.mbtiles", want: Target{Scheme: "s3", Bucket: "tiles", Key: "dem/out.mbtiles"}},
		{raw: "s3://tiles", want: Target{Scheme: "s3", Bucket: "tiles"}},
		{raw: "minio://localhost:9000/tiles/dem/", want: Target{Scheme: "minio", Endpoint: "localhost:9000", Bucket: "tiles", Key: "dem/"}},
		{raw: "minio://localhost:9000", err: true},
		{raw: "s3:///key", err: true},
		{raw: "gs://bucket/key", err: true},
		{raw: "/tmp/out.mbtiles", err: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseTarget(tt.raw)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "a/b.mbtiles", Target{Key: "a/b.mbtiles"}.objectKey("/tmp/x.mbtiles"))
	assert.Equal(t, "dem/x.mbtiles", Target{Key: "dem/"}.objectKey("/tmp/x.mbtiles"))
	assert.Equal(t, "x.tif", Target{}.objectKey("/tmp/x.tif"))
}

type fakeUploader struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeUploader) Upload(_ context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	f.input = in
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = body
	return &manager.UploadOutput{}, f.err
}

func localFile(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte("payload"), 0o644))
	return p
}

func TestS3_Publish(t *testing.T) {
	up := &fakeUploader{}
	p := NewS3WithUploader(Target{Scheme: "s3", Bucket: "tiles", Key: "dem/"}, up)

	require.NoError(t, p.Publish(context.Background(), localFile(t, "out.mbtiles")))
	assert.Equal(t, "tiles", aws.ToString(up.input.Bucket))
	assert.Equal(t, "dem/out.mbtiles", aws.ToString(up.input.Key))
	assert.Equal(t, "application/vnd.sqlite3", aws.ToString(up.input.ContentType))
	assert.Equal(t, []byte("payload"), up.body)

	up.err = errors.New("denied")
	assert.ErrorContains(t, p.Publish(context.Background(), localFile(t, "out.mbtiles")), "denied")
	assert.Error(t, p.Publish(context.Background(), filepath.Join(t.TempDir(), "missing")))
}

type fakePutter struct {
	bucket, object, path string
	opts                 minio.PutObjectOptions
}

func (f *fakePutter) FPutObject(_ context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	f.bucket, f.object, f.path, f.opts = bucket, object, filePath, opts
	return minio.UploadInfo{Bucket: bucket, Key: object}, nil
}

func TestMinio_Publish(t *testing.T) {
	put := &fakePutter{}
	p := NewMinioWithClient(Target{Scheme: "minio", Endpoint: "localhost:9000", Bucket: "tiles", Key: "rgb.tif"}, put, Options{})

	local := localFile(t, "x.tif")
	require.NoError(t, p.Publish(context.Background(), local))
	assert.Equal(t, "tiles", put.bucket)
	assert.Equal(t, "rgb.tif", put.object)
	assert.Equal(t, local, put.path)
	assert.Equal(t, "image/tiff", put.opts.ContentType)
}

func TestNew_Minio(t *testing.T) {
	p, err := New(context.Background(), "minio://localhost:9000/tiles/out.mbtiles", Options{AccessKey: "a", SecretKey: "b"})
	require.NoError(t, err)
	assert.IsType(t, &Minio{}, p)

	_, err = New(context.Background(), "ftp://x/y", Options{})
	assert.Error(t, err)
}
