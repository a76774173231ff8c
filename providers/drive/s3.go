package drive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// DefaultRegion is used when S3Config.Region is empty.
const DefaultRegion = "us-east-1"

// S3Config configures an S3-compatible disk.
type S3Config struct {
	Bucket    string `env:"DRIVE_S3_BUCKET"`
	Region    string `env:"DRIVE_S3_REGION"`
	Endpoint  string `env:"DRIVE_S3_ENDPOINT"`
	AccessKey string `env:"DRIVE_S3_ACCESS_KEY"`
	SecretKey string `env:"DRIVE_S3_SECRET_KEY"`
	PublicURL string `env:"DRIVE_S3_PUBLIC_URL"`
	PathStyle bool   `env:"DRIVE_S3_PATH_STYLE"`
}

func (c *S3Config) validate() error {
	switch {
	case c.Bucket == "":
		return fmt.Errorf("%w: s3 bucket is required", ErrInvalidConfig)
	case c.AccessKey == "" || c.SecretKey == "":
		return fmt.Errorf("%w: s3 credentials are required", ErrInvalidConfig)
	}
	return nil
}

// S3Disk stores files in an S3 bucket. URLs are presigned GET requests.
type S3Disk struct {
	client    *s3.Client
	presigner *s3.PresignClient
	cfg       S3Config
}

// NewS3Disk validates cfg and builds the client. No request is made.
func NewS3Disk(cfg S3Config) (*S3Disk, error) {
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	client := s3.New(s3.Options{}, func(o *s3.Options) {
		o.Region = cfg.Region
		o.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.PathStyle
		}
	})

	return &S3Disk{
		client:    client,
		presigner: s3.NewPresignClient(client),
		cfg:       cfg,
	}, nil
}

func (d *S3Disk) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	key, err := CleanKey(key)
	if err != nil {
		return err
	}

	body, ok := r.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUploadFailed, err)
		}
		body = bytes.NewReader(data)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(d.cfg.Bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return wrapS3Error(err, ErrUploadFailed)
	}
	return nil
}

func (d *S3Disk) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	key, err := CleanKey(key)
	if err != nil {
		return nil, err
	}

	out, err := d.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, wrapS3Error(err, ErrNotFound)
	}
	return out.Body, nil
}

func (d *S3Disk) Exists(ctx context.Context, key string) (bool, error) {
	key, err := CleanKey(key)
	if err != nil {
		return false, err
	}

	_, err = d.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(d.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}

	err = wrapS3Error(err, ErrNotFound)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}

func (d *S3Disk) Delete(ctx context.Context, key string) error {
	key, err := CleanKey(key)
	if err != nil {
		return err
	}

	_, err = d.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(d.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return wrapS3Error(err, ErrDeleteFailed)
	}
	return nil
}

// URL presigns a GET request. A zero expiry returns the public URL.
func (d *S3Disk) URL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	key, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	if expiry == 0 {
		return d.publicURL(key), nil
	}

	req, err := d.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.cfg.Bucket),
		Key:    aws.String(key),
	}, func(o *s3.PresignOptions) {
		o.Expires = expiry
	})
	if err != nil {
		return "", wrapS3Error(err, ErrPresignFailed)
	}
	return req.URL, nil
}

func (d *S3Disk) publicURL(key string) string {
	if d.cfg.PublicURL != "" {
		return strings.TrimSuffix(d.cfg.PublicURL, "/") + "/" + key
	}
	if d.cfg.Endpoint != "" {
		endpoint := strings.TrimSuffix(d.cfg.Endpoint, "/")
		if d.cfg.PathStyle {
			return fmt.Sprintf("%s/%s/%s", endpoint, d.cfg.Bucket, key)
		}
		return fmt.Sprintf("%s/%s", endpoint, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", d.cfg.Bucket, d.cfg.Region, key)
}

// wrapS3Error maps S3 failures onto the drive sentinels.
func wrapS3Error(err, fallback error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		case "AccessDenied", "Forbidden":
			return fmt.Errorf("%w: %v", ErrAccessDenied, err)
		}
	}

	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return fmt.Errorf("%w: %v", fallback, err)
}
