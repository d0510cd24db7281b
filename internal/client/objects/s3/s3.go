// Package s3 implements objects.Store on any S3-compatible service
// (AWS, MinIO) through aws-sdk-go-v2.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/agita-app/agita/internal/client/metrics"
	"github.com/agita-app/agita/internal/client/objects"
	"github.com/agita-app/agita/internal/common"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// Seams for tests.
var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) api {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// api is the part of *s3.Client the store uses.
type api interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Config selects the S3 endpoint. Buckets of the object API map to key
// prefixes inside Bucket.
type Config struct {
	Bucket        string
	Region        string
	BaseEndpoint  string // empty for AWS
	AccessKey     string
	SecretKey     string
	PublicBaseURL string // empty derives <endpoint>/<bucket>
}

type Store struct {
	cfg     Config
	client  api
	metrics *metrics.Metrics
}

// New loads AWS configuration with static credentials and builds a client.
func New(ctx context.Context, cfg Config, m *metrics.Metrics) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: s3 bucket", common.ErrMissingConfig)
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})
	return &Store{cfg: cfg, client: client, metrics: m}, nil
}

var _ objects.Store = (*Store)(nil)

func (s *Store) objectKey(bucket, key string) string {
	return bucket + "/" + key
}

func (s *Store) Upload(ctx context.Context, bucket, key string, data []byte, opts objects.UploadOptions) (_ string, err error) {
	defer func() { s.metrics.ObjectRequest("upload", bucket, err) }()

	k := s.objectKey(bucket, key)
	if !opts.Overwrite {
		_, herr := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.cfg.Bucket), Key: aws.String(k)})
		if herr == nil {
			return "", fmt.Errorf("upload %s: %w", k, common.ErrConflict)
		}
		if !isNotFound(herr) {
			return "", fmt.Errorf("upload %s: %w", k, mapError(herr))
		}
	}

	in := &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(k),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if opts.ContentType != "" {
		in.ContentType = aws.String(opts.ContentType)
	}
	if opts.CacheControl != "" {
		in.CacheControl = aws.String("max-age=" + opts.CacheControl)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("upload %s: %w", k, mapError(err))
	}
	return s.PublicURL(bucket, key), nil
}

func (s *Store) PublicURL(bucket, key string) string {
	base := s.cfg.PublicBaseURL
	if base == "" {
		endpoint := s.cfg.BaseEndpoint
		if endpoint == "" {
			endpoint = "https://s3." + s.cfg.Region + ".amazonaws.com"
		}
		base = strings.TrimRight(endpoint, "/") + "/" + s.cfg.Bucket
	}
	return strings.TrimRight(base, "/") + "/" + s.objectKey(bucket, key)
}

func (s *Store) Delete(ctx context.Context, bucket, key string) (err error) {
	defer func() { s.metrics.ObjectRequest("delete", bucket, err) }()

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.objectKey(bucket, key)),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("delete %s/%s: %w", bucket, key, mapError(err))
	}
	return nil
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	if errors.As(err, &nf) || errors.As(err, &nsk) {
		return true
	}
	var ae smithy.APIError
	return errors.As(err, &ae) && (ae.ErrorCode() == "NotFound" || ae.ErrorCode() == "NoSuchKey")
}

func mapError(err error) error {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		switch ae.ErrorCode() {
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return fmt.Errorf("%w: %s", common.ErrUnauthorized, ae.ErrorMessage())
		case "EntityTooLarge", "InvalidArgument":
			return fmt.Errorf("%w: %s", common.ErrValidation, ae.ErrorMessage())
		}
	}
	return fmt.Errorf("%w: %v", common.ErrUnavailable, err)
}
