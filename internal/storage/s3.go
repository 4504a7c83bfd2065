package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"
)

// S3Options configures the S3 backend. Empty credentials fall back to the
// default AWS chain.
type S3Options struct {
	Bucket    string
	Region    string
	Endpoint  string
	Prefix    string
	AccessKey string
	SecretKey string
	PathStyle bool
	Password  string
}

// S3 stores objects in a bucket.
type S3 struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
	password string
}

// NewS3 creates a new S3 store
func NewS3(ctx context.Context, opts S3Options) (*S3, error) {
	if opts.Bucket == "" {
		return nil, errors.New("s3 storage: bucket is required")
	}
	var loadOpts []func(*awscfg.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awscfg.WithRegion(opts.Region))
	}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loadOpts = append(loadOpts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}
	cfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	cli := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.PathStyle
	})

	return &S3{
		client:   cli,
		uploader: manager.NewUploader(cli),
		bucket:   opts.Bucket,
		prefix:   strings.Trim(opts.Prefix, "/"),
		password: opts.Password,
	}, nil
}

func (s *S3) objectKey(key string) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if s.prefix == "" {
		return k, nil
	}
	return path.Join(s.prefix, k), nil
}

func (s *S3) Save(ctx context.Context, key string, data []byte, meta Meta) error {
	k, err := s.objectKey(key)
	if err != nil {
		return err
	}
	meta = fillMeta(meta, data)
	body := data
	if s.password != "" {
		if body, err = encrypt(data, s.password); err != nil {
			return fmt.Errorf("failed to encrypt data: %w", err)
		}
		meta.Encrypted = true
	}

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(k),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(meta.ContentType),
		Metadata:    toS3Metadata(meta),
	})
	if err != nil {
		log.Error().Err(err).Str("key", k).Msg("s3 upload failed")
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	log.Info().Str("key", k).Int64("size", meta.Size).Bool("encrypted", meta.Encrypted).Msg("uploaded result to S3")
	return nil
}

func (s *S3) Open(ctx context.Context, key string) (io.ReadCloser, Meta, error) {
	k, err := s.objectKey(key)
	if err != nil {
		return nil, Meta{}, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(k),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, Meta{}, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, Meta{}, fmt.Errorf("failed to download from S3: %w", err)
	}
	meta := fromS3Metadata(out.Metadata)
	if out.ContentType != nil && meta.ContentType == "" {
		meta.ContentType = *out.ContentType
	}

	if !meta.Encrypted {
		if out.ContentLength != nil {
			meta.Size = *out.ContentLength
		}
		return out.Body, meta, nil
	}

	defer out.Body.Close()
	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("failed to read S3 object: %w", err)
	}
	plain, err := decrypt(raw, s.password)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("failed to decrypt %s: %w", key, err)
	}
	meta = fillMeta(meta, plain)
	return io.NopCloser(bytes.NewReader(plain)), meta, nil
}

// Ping checks that the bucket exists and is reachable.
func (s *S3) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	return err
}

// Bucket returns the configured bucket name.
func (s *S3) Bucket() string { return s.bucket }

func toS3Metadata(meta Meta) map[string]string {
	m := make(map[string]string, len(meta.Metadata)+3)
	for k, v := range meta.Metadata {
		m[strings.ToLower(k)] = v
	}
	if meta.Name != "" {
		m["name"] = meta.Name
	}
	m["encrypted"] = strconv.FormatBool(meta.Encrypted)
	m["plain-size"] = strconv.FormatInt(meta.Size, 10)
	return m
}

// fromS3Metadata reverses toS3Metadata. S3 may return keys capitalised.
func fromS3Metadata(in map[string]string) Meta {
	meta := Meta{Metadata: make(map[string]string)}
	for k, v := range in {
		switch strings.ToLower(k) {
		case "name":
			meta.Name = v
		case "encrypted":
			meta.Encrypted, _ = strconv.ParseBool(v)
		case "plain-size":
			meta.Size, _ = strconv.ParseInt(v, 10, 64)
		default:
			meta.Metadata[strings.ToLower(k)] = v
		}
	}
	return meta
}
