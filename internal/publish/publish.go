// Package publish uploads a build output directory to an S3 compatible
// bucket.
package publish

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/valderanvvk/frontend-base-template/internal/assets"
	"github.com/valderanvvk/frontend-base-template/internal/telemetry"
)

const (
	cacheImmutable  = "public, max-age=31536000, immutable"
	cacheRevalidate = "no-cache"
)

type Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Stats summarizes a publish run.
type Stats struct {
	Objects int
	Bytes   int64
}

// Publisher uploads files to one bucket.
type Publisher struct {
	client   *minio.Client
	fs       afero.Fs
	bucket   string
	region   string
	initOnce sync.Once
	initErr  error
}

func New(cfg Config, fs afero.Fs) (*Publisher, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, errors.New("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	return &Publisher{
		client: client,
		fs:     fs,
		bucket: bucket,
		region: region,
	}, nil
}

func (p *Publisher) ensureBucket(ctx context.Context) error {
	p.initOnce.Do(func() {
		exists, err := p.client.BucketExists(ctx, p.bucket)
		if err != nil {
			p.initErr = err
			return
		}
		if exists {
			return
		}
		p.initErr = p.client.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{Region: p.region})
	})
	return p.initErr
}

// Publish uploads every file below dir under prefix. Files the build
// manifest marks immutable are cached forever, everything else must be
// revalidated.
func (p *Publisher) Publish(ctx context.Context, dir, prefix string) (Stats, error) {
	var stats Stats

	if err := p.ensureBucket(ctx); err != nil {
		return stats, fmt.Errorf("ensure bucket: %w", err)
	}

	immutable := map[string]bool{}
	m, err := assets.ReadManifest(p.fs, dir)
	switch {
	case err == nil:
		for _, f := range m.Files {
			immutable[f.Path] = f.Immutable
		}
	case errors.Is(err, os.ErrNotExist):
		log.Warn().Str("dir", dir).Msg("No build manifest, publishing without long cache headers")
	default:
		return stats, err
	}

	err = afero.Walk(p.fs, dir, func(file string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, file)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		f, err := p.fs.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()

		key := objectKey(prefix, rel)
		_, err = p.client.PutObject(ctx, p.bucket, key, f, info.Size(), putOptions(rel, immutable))
		if err != nil {
			return fmt.Errorf("failed to upload %s: %w", key, err)
		}

		stats.Objects++
		stats.Bytes += info.Size()
		log.Debug().Str("key", key).Str("size", humanize.Bytes(uint64(info.Size()))).Msg("Uploaded object")
		return nil
	})
	telemetry.GetMetrics().PublishedObjects.Add(ctx, int64(stats.Objects))
	if err != nil {
		return stats, err
	}

	log.Info().
		Str("bucket", p.bucket).
		Str("prefix", prefix).
		Int("objects", stats.Objects).
		Str("size", humanize.Bytes(uint64(stats.Bytes))).
		Msg("Published build")

	return stats, nil
}

func objectKey(prefix, rel string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return rel
	}
	return path.Join(prefix, rel)
}

// putOptions derives the object headers of rel. Precompressed variants keep
// the type of the original file and carry its encoding.
func putOptions(rel string, immutable map[string]bool) minio.PutObjectOptions {
	original, encoding := rel, ""
	switch path.Ext(rel) {
	case ".gz":
		original, encoding = strings.TrimSuffix(rel, ".gz"), "gzip"
	case ".zst":
		original, encoding = strings.TrimSuffix(rel, ".zst"), "zstd"
	}

	contentType := mime.TypeByExtension(path.Ext(original))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return minio.PutObjectOptions{
		ContentType:     contentType,
		ContentEncoding: encoding,
		CacheControl:    cacheControl(immutable[original]),
	}
}

func cacheControl(immutable bool) string {
	if immutable {
		return cacheImmutable
	}
	return cacheRevalidate
}
