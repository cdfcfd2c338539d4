package migrate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client used by S3Dir.
type S3API interface {
	PutObject(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(context.Context, *s3.ListObjectsV2Input, ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Config configures the S3 client of an S3Dir. Empty fields fall back
// to the default AWS configuration chain.
type S3Config struct {
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	// Endpoint is set for S3-compatible services and enables path-style
	// addressing.
	Endpoint string `yaml:"endpoint"`
}

// NewS3Client returns an S3 client for cfg.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("migrate: load aws config: %w", err)
	}
	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(awsCfg, clientOpts...), nil
}

// S3Dir stores migrations as SQL objects under a prefix of an S3 bucket.
type S3Dir struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Dir returns a store for the objects of bucket under prefix.
func NewS3Dir(client S3API, bucket, prefix string) *S3Dir {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &S3Dir{client: client, bucket: bucket, prefix: prefix}
}

// Write implements the Store interface.
func (d *S3Dir) Write(ctx context.Context, m *Migration) error {
	up, down := FileNames(m)
	for _, f := range []file{
		{name: up, data: Encode(m, "up", m.Up)},
		{name: down, data: Encode(m, "down", m.Down)},
	} {
		_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(d.bucket),
			Key:         aws.String(d.prefix + f.name),
			Body:        bytes.NewReader(f.data),
			ContentType: aws.String("application/sql"),
		})
		if err != nil {
			return fmt.Errorf("migrate: put s3://%s/%s%s: %w", d.bucket, d.prefix, f.name, err)
		}
	}
	return nil
}

// Migrations implements the Store interface.
func (d *S3Dir) Migrations(ctx context.Context) ([]*Migration, error) {
	var (
		files []file
		p     = s3.NewListObjectsV2Paginator(d.client, &s3.ListObjectsV2Input{
			Bucket: aws.String(d.bucket),
			Prefix: aws.String(d.prefix),
		})
	)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("migrate: list s3://%s/%s: %w", d.bucket, d.prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			name := path.Base(key)
			if _, _, _, ok := ParseFileName(name); !ok || key != d.prefix+name {
				continue
			}
			data, err := d.get(ctx, key)
			if err != nil {
				return nil, err
			}
			files = append(files, file{name: name, data: data})
		}
	}
	return assemble(files)
}

func (d *S3Dir) get(ctx context.Context, key string) ([]byte, error) {
	out, err := d.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("migrate: get s3://%s/%s: %w", d.bucket, key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("migrate: read s3://%s/%s: %w", d.bucket, key, err)
	}
	return data, nil
}
