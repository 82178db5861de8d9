// Package publish uploads finished outputs to object storage.
package publish

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// Publisher copies a local file to its remote destination.
type Publisher interface {
	Publish(ctx context.Context, localPath string) error
}

// Target is a parsed destination URL.
type Target struct {
	Scheme   string // s3 or minio
	Endpoint string // minio only
	Bucket   string
	Key      string
}

// Options holds credentials for backends that do not read them from the
// environment themselves.
type Options struct {
	AccessKey string
	SecretKey string
	Secure    bool
	// PartSize is the multipart chunk size in bytes; 0 keeps the SDK default.
	PartSize int64
}

// ParseTarget accepts s3://bucket/key and minio://endpoint/bucket/key. A
// key that is empty or ends in a slash is completed with the local file
// name at publish time.
func ParseTarget(raw string) (Target, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Target{}, fmt.Errorf("publish target %q: %w", raw, err)
	}
	rest := strings.TrimPrefix(u.Path, "/")

	switch u.Scheme {
	case "s3":
		if u.Host == "" {
			return Target{}, fmt.Errorf("publish target %q: missing bucket", raw)
		}
		return Target{Scheme: "s3", Bucket: u.Host, Key: rest}, nil
	case "minio":
		bucket, key, _ := strings.Cut(rest, "/")
		if u.Host == "" || bucket == "" {
			return Target{}, fmt.Errorf("publish target %q: want minio://endpoint/bucket/key", raw)
		}
		return Target{Scheme: "minio", Endpoint: u.Host, Bucket: bucket, Key: key}, nil
	}
	return Target{}, fmt.Errorf("publish target %q: unsupported scheme %q", raw, u.Scheme)
}

// New returns the publisher for raw.
func New(ctx context.Context, raw string, opts Options) (Publisher, error) {
	t, err := ParseTarget(raw)
	if err != nil {
		return nil, err
	}
	if t.Scheme == "s3" {
		p, err := NewS3(ctx, t, opts)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	p, err := NewMinio(t, opts)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// objectKey resolves the key for a local file.
func (t Target) objectKey(localPath string) string {
	if t.Key == "" || strings.HasSuffix(t.Key, "/") {
		return path.Join(t.Key, filepath.Base(localPath))
	}
	return t.Key
}

func contentType(localPath string) string {
	switch strings.ToLower(filepath.Ext(localPath)) {
	case ".mbtiles":
		return "application/vnd.sqlite3"
	case ".tif", ".tiff":
		return "image/tiff"
	}
	return "application/octet-stream"
}
