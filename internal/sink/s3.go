package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"bkup-go/internal/bk"
	"bkup-go/internal/config"
)

// S3Scheme prefixes destinations stored in an S3 bucket.
const S3Scheme = "s3://"

// Object metadata keys. S3 returns user metadata keys in lower case.
const (
	metaModTime = "mtime"
	metaMode    = "mode"
)

// s3API is the subset of the S3 client used by S3Destination.
type s3API interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type uploader interface {
	Upload(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Destination mirrors sources as objects under s3://bucket/prefix.
// Folders are stored as zero-byte objects whose key ends in '/'.
type S3Destination struct {
	ctx      context.Context
	client   s3API
	uploader uploader
	bucket   string
	prefix   string
}

// ParseS3URL splits s3://bucket/prefix into its bucket and key prefix.
func ParseS3URL(raw string) (bucket, prefix string, err error) {
	if !strings.HasPrefix(raw, S3Scheme) {
		return "", "", fmt.Errorf("not an s3 url: %s", raw)
	}
	rest := strings.TrimPrefix(raw, S3Scheme)
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("s3 url has no bucket: %s", raw)
	}
	return bucket, strings.Trim(prefix, "/"), nil
}

// NewS3Destination builds a client from cfg and the default AWS credential
// chain, and binds it to the bucket and prefix named by raw.
func NewS3Destination(ctx context.Context, cfg config.DestinationConfig, raw string) (*S3Destination, error) {
	bucket, prefix, err := ParseS3URL(raw)
	if err != nil {
		return nil, err
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		o.UsePathStyle = cfg.S3UsePathStyle
	})

	return newS3Destination(ctx, client, manager.NewUploader(client), bucket, prefix), nil
}

func newS3Destination(ctx context.Context, client s3API, up uploader, bucket, prefix string) *S3Destination {
	return &S3Destination{
		ctx:      ctx,
		client:   client,
		uploader: up,
		bucket:   bucket,
		prefix:   prefix,
	}
}

func (d *S3Destination) String() string {
	if d.prefix == "" {
		return S3Scheme + d.bucket
	}
	return S3Scheme + d.bucket + "/" + d.prefix
}

// Validate checks that the bucket exists and the credentials can reach it.
func (d *S3Destination) Validate() error {
	if _, err := d.client.HeadBucket(d.ctx, &s3.HeadBucketInput{Bucket: aws.String(d.bucket)}); err != nil {
		return fmt.Errorf("bucket %s not accessible: %w", d.bucket, err)
	}
	return nil
}

func (d *S3Destination) key(rel string) string {
	return path.Join(d.prefix, filepath.ToSlash(rel))
}

// MkdirAll stores a folder marker object for rel unless one exists.
func (d *S3Destination) MkdirAll(rel string) (bool, error) {
	if filepath.Clean(rel) == "." {
		return false, nil
	}
	key := d.key(rel) + "/"

	exists, err := d.exists(key)
	if err != nil || exists {
		return false, err
	}

	_, err = d.client.PutObject(d.ctx, &s3.PutObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(nil),
	})
	if err != nil {
		return false, fmt.Errorf("creating folder marker %s: %w", key, err)
	}
	return true, nil
}

func (d *S3Destination) exists(key string) (bool, error) {
	_, err := d.client.HeadObject(d.ctx, &s3.HeadObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return false, nil
	}
	return false, fmt.Errorf("checking %s: %w", key, err)
}

// Unchanged compares the object's size and the modification time recorded
// in its metadata when it was uploaded.
func (d *S3Destination) Unchanged(rel string, meta bk.FileMeta) (bool, error) {
	out, err := d.client.HeadObject(d.ctx, &s3.HeadObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(d.key(rel)),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, err
	}

	if meta.Size >= 0 && aws.ToInt64(out.ContentLength) != meta.Size {
		return false, nil
	}
	stored, ok := out.Metadata[metaModTime]
	if !ok {
		return false, nil
	}
	mtime, err := time.Parse(time.RFC3339, stored)
	if err != nil {
		return false, nil
	}
	return sameSecond(mtime, meta.ModTime), nil
}

// WriteFile uploads r to the object for rel; large files go up in parts.
func (d *S3Destination) WriteFile(rel string, r io.Reader, meta bk.FileMeta) (int64, error) {
	body := &countingReader{r: r}
	_, err := d.uploader.Upload(d.ctx, &s3.PutObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(d.key(rel)),
		Body:   body,
		Metadata: map[string]string{
			metaModTime: meta.ModTime.UTC().Truncate(time.Second).Format(time.RFC3339),
			metaMode:    strconv.FormatUint(uint64(meta.Mode.Perm()), 8),
		},
	})
	if err != nil {
		return body.n, fmt.Errorf("uploading %s: %w", d.key(rel), err)
	}
	if meta.Size >= 0 && body.n != meta.Size {
		return body.n, fmt.Errorf("size mismatch: expected %d bytes, got %d (file changed during copy)", meta.Size, body.n)
	}
	return body.n, nil
}

var _ bk.Destination = (*S3Destination)(nil)
