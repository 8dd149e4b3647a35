// Package images turns stored seed request image paths into links the
// dashboard can load.
package images

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const DefaultExpiry = 15 * time.Minute

var ErrNotConfigured = errors.New("object storage not configured")

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
)

type Config struct {
	Region    string
	AccessKey string
	SecretKey string
	Endpoint  string
	Bucket    string
	Expiry    time.Duration
}

func (c Config) Enabled() bool {
	return c.Bucket != ""
}

// Presigner issues time-limited GET and PUT links for objects in one
// bucket. The S3 client is built on first use.
type Presigner struct {
	cfg Config

	once sync.Once
	pc   *s3.PresignClient
	err  error
}

func NewPresigner(cfg Config) *Presigner {
	if cfg.Expiry <= 0 {
		cfg.Expiry = DefaultExpiry
	}
	return &Presigner{cfg: cfg}
}

func (p *Presigner) client(ctx context.Context) (*s3.PresignClient, error) {
	p.once.Do(func() {
		if !p.cfg.Enabled() {
			p.err = ErrNotConfigured
			return
		}

		opts := []func(*config.LoadOptions) error{config.WithRegion(p.cfg.Region)}
		if p.cfg.AccessKey != "" {
			opts = append(opts, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(p.cfg.AccessKey, p.cfg.SecretKey, "")))
		}

		cfg, err := loadDefaultAWSConfig(ctx, opts...)
		if err != nil {
			p.err = fmt.Errorf("load aws config: %w", err)
			return
		}

		client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
			if p.cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(p.cfg.Endpoint)
				o.UsePathStyle = true
			}
		})
		p.pc = newS3PresignClient(client)
	})
	return p.pc, p.err
}

// URL returns a link for path. Paths that are already absolute http(s)
// URLs are returned unchanged; anything else is treated as an object key.
func (p *Presigner) URL(ctx context.Context, path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path, nil
	}

	pc, err := p.client(ctx)
	if err != nil {
		return "", err
	}

	req, err := presignGetObject(pc, ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.cfg.Bucket),
		Key:    aws.String(strings.TrimPrefix(path, "/")),
	}, s3.WithPresignExpires(p.cfg.Expiry))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", path, err)
	}

	return req.URL, nil
}

// UploadURL returns a PUT link for key, used to store a new image.
func (p *Presigner) UploadURL(ctx context.Context, key, contentType string) (string, error) {
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return "", errors.New("empty object key")
	}

	pc, err := p.client(ctx)
	if err != nil {
		return "", err
	}

	in := &s3.PutObjectInput{
		Bucket: aws.String(p.cfg.Bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}

	req, err := presignPutObject(pc, ctx, in, s3.WithPresignExpires(p.cfg.Expiry))
	if err != nil {
		return "", fmt.Errorf("presign upload %s: %w", key, err)
	}
	return req.URL, nil
}
