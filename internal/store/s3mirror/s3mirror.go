// Package s3mirror keeps a best-effort remote copy of every persisted
// artifact in an S3-compatible bucket.
package s3mirror

import (
	"bytes"
	"context"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	s3pkg "github.com/aws/aws-sdk-go-v2/service/s3"
)

type S3Mirror struct {
	client *s3pkg.Client
	bucket string
}

type Config struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
}

// New resolves credentials and region from the ambient AWS environment.
func New(ctx context.Context, bucket string) (*S3Mirror, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}

	return &S3Mirror{
		client: s3pkg.NewFromConfig(cfg),
		bucket: bucket,
	}, nil
}

// NewFromConfig targets an explicitly configured endpoint, which makes
// it suitable for S3-compatible storage like MinIO.
func NewFromConfig(config *Config) (*S3Mirror, error) {
	awsConfig := aws.Config{
		Region: config.Region,
	}

	if config.AccessKeyID != "" {
		awsConfig.Credentials = credentials.NewStaticCredentialsProvider(
			config.AccessKeyID,
			config.AccessKeySecret,
			"",
		)
	}

	var clientOpts []func(*s3pkg.Options)

	if config.Endpoint != "" {
		endpointURL, err := url.Parse(config.Endpoint)
		if err != nil {
			return nil, err
		}

		clientOpts = append(clientOpts, func(options *s3pkg.Options) {
			options.EndpointResolverV2 = &s3EndpointResolver{url: endpointURL}
		})
	}

	return &S3Mirror{
		client: s3pkg.NewFromConfig(awsConfig, clientOpts...),
		bucket: config.Bucket,
	}, nil
}

func (mirror *S3Mirror) Mirror(ctx context.Context, key string, payload []byte) error {
	_, err := mirror.client.PutObject(ctx, &s3pkg.PutObjectInput{
		Bucket: aws.String(mirror.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(payload),
	})

	return err
}
