package s3storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/dharsanguruparan/soupcal/internal/config"
	"github.com/dharsanguruparan/soupcal/internal/model"
)

// ErrNoSource means nothing has been archived yet for a source kind.
var ErrNoSource = errors.New("no archived source")

// Storage archives fetched calendar documents in the raw bucket and the rows
// parsed from them in the processed bucket.
type Storage struct {
	client          *minio.Client
	rawBucket       string
	processedBucket string
	region          string
}

// New creates a MinIO client from the Config.
func New(cfg *config.Config) (*Storage, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &Storage{
		client:          client,
		rawBucket:       cfg.RawBucket,
		processedBucket: cfg.ProcessedBucket,
		region:          cfg.S3Region,
	}, nil
}

// EnsureBuckets makes sure the raw/processed buckets exist before use.
func (s *Storage) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{s.rawBucket, s.processedBucket} {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", bucket, err)
		}
		if !exists {
			if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
				return fmt.Errorf("make bucket %s: %w", bucket, err)
			}
		}
	}
	return nil
}

func sourcePrefix(kind string) string {
	return path.Join("imports", kind) + "/"
}

// SourceKey is where the fetched document of an import lives.
func SourceKey(kind, id string) string {
	return path.Join("imports", kind, id, "source")
}

// RowsKey is where the parsed rows of an import live.
func RowsKey(kind, id string) string {
	return path.Join("imports", kind, id, "rows.json")
}

// PutSource uploads a fetched document into the raw bucket.
func (s *Storage) PutSource(ctx context.Context, kind, id string, data []byte, contentType string) (string, error) {
	key := SourceKey(kind, id)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := s.client.PutObject(ctx, s.rawBucket, key, bytes.NewReader(data), int64(len(data)), opts); err != nil {
		return "", fmt.Errorf("upload source object: %w", err)
	}
	return key, nil
}

// LatestSource returns the most recently archived document of a kind.
func (s *Storage) LatestSource(ctx context.Context, kind string) ([]byte, error) {
	var latest minio.ObjectInfo
	for obj := range s.client.ListObjects(ctx, s.rawBucket, minio.ListObjectsOptions{Prefix: sourcePrefix(kind), Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list source objects: %w", obj.Err)
		}
		if path.Base(obj.Key) != "source" {
			continue
		}
		if latest.Key == "" || obj.LastModified.After(latest.LastModified) {
			latest = obj
		}
	}
	if latest.Key == "" {
		return nil, fmt.Errorf("%s: %w", kind, ErrNoSource)
	}
	return s.download(ctx, s.rawBucket, latest.Key)
}

func (s *Storage) download(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	defer obj.Close()
	buf, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	return buf, nil
}

// PutRows uploads the parsed rows as JSON into the processed bucket.
func (s *Storage) PutRows(ctx context.Context, kind, id string, rows []model.CalendarRow) error {
	data, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("marshal rows: %w", err)
	}
	opts := minio.PutObjectOptions{ContentType: "application/json"}
	if _, err := s.client.PutObject(ctx, s.processedBucket, RowsKey(kind, id), bytes.NewReader(data), int64(len(data)), opts); err != nil {
		return fmt.Errorf("upload rows object: %w", err)
	}
	return nil
}

// PresignSourceURL returns a signed GET URL for an archived document.
func (s *Storage) PresignSourceURL(ctx context.Context, kind, id string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.rawBucket, SourceKey(kind, id), expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign source object: %w", err)
	}
	return u.String(), nil
}
