package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/dmitrymomot/mailqueue/pkg/mailqueue"
)

// S3Client defines the S3 operations used by S3Transport.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Transport drops raw messages into a pickup bucket. The envelope travels
// in the object metadata so a relay can deliver without parsing headers.
type S3Transport struct {
	client S3Client
	bucket string
	prefix string
}

var _ mailqueue.Transport = (*S3Transport)(nil)

// S3Option configures S3Transport.
type S3Option func(*s3Options)

type s3Options struct {
	httpClient      *http.Client
	s3Client        S3Client
	s3ConfigOptions []func(*config.LoadOptions) error
	s3ClientOptions []func(*s3.Options)
}

// WithS3Client sets a pre-configured S3 client.
func WithS3Client(client S3Client) S3Option {
	return func(o *s3Options) {
		o.s3Client = client
	}
}

// WithHTTPClient sets a custom HTTP client for S3 requests.
func WithHTTPClient(client *http.Client) S3Option {
	return func(o *s3Options) {
		o.httpClient = client
	}
}

// WithS3ConfigOption adds an AWS config load option.
func WithS3ConfigOption(option func(*config.LoadOptions) error) S3Option {
	return func(o *s3Options) {
		o.s3ConfigOptions = append(o.s3ConfigOptions, option)
	}
}

// WithS3ClientOption adds an S3 client option.
func WithS3ClientOption(option func(*s3.Options)) S3Option {
	return func(o *s3Options) {
		o.s3ClientOptions = append(o.s3ClientOptions, option)
	}
}

// NewS3Transport creates an S3 pickup transport.
func NewS3Transport(ctx context.Context, cfg Config, opts ...S3Option) (*S3Transport, error) {
	if cfg.S3Bucket == "" || cfg.S3Region == "" {
		return nil, fmt.Errorf("%w: S3Bucket and S3Region are required", ErrInvalidConfig)
	}

	options := &s3Options{}
	for _, opt := range opts {
		opt(options)
	}

	client := options.s3Client
	if client == nil {
		awsOptions := []func(*config.LoadOptions) error{
			config.WithRegion(cfg.S3Region),
		}
		if cfg.S3AccessKeyID != "" && cfg.S3SecretKey != "" {
			awsOptions = append(awsOptions,
				config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
					cfg.S3AccessKeyID,
					cfg.S3SecretKey,
					"",
				)),
			)
		}
		if options.httpClient != nil {
			awsOptions = append(awsOptions, config.WithHTTPClient(options.httpClient))
		}
		awsOptions = append(awsOptions, options.s3ConfigOptions...)

		awsConfig, err := config.LoadDefaultConfig(ctx, awsOptions...)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFailedToLoadAWSConf, err)
		}

		client = s3.NewFromConfig(awsConfig, func(o *s3.Options) {
			if cfg.S3Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			}
			o.UsePathStyle = cfg.S3ForcePathStyle
			for _, opt := range options.s3ClientOptions {
				opt(o)
			}
		})
	}

	return &S3Transport{
		client: client,
		bucket: cfg.S3Bucket,
		prefix: strings.Trim(cfg.S3Prefix, "/"),
	}, nil
}

// Send uploads the raw message as <prefix>/<id>.eml.
func (t *S3Transport) Send(ctx context.Context, m mailqueue.Message) error {
	key := path.Join(t.prefix, mailqueue.NewItemID()+".eml")

	_, err := t.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(t.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(m.Raw),
		ContentType: aws.String("message/rfc822"),
		Metadata: map[string]string{
			"sender":     m.Envelope.Sender,
			"recipients": strings.Join(m.Envelope.Recipients, ","),
		},
	})
	if err != nil {
		return classifyS3Error(err)
	}
	return nil
}

// classifyS3Error maps an SDK error to a transport error kind.
func classifyS3Error(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return mailqueue.NewTransportError("s3.timeout", err)
	case errors.Is(err, context.Canceled):
		return mailqueue.NewTransportError("s3.canceled", err)
	}

	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return mailqueue.NewTransportError("s3.NoSuchBucket", err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return mailqueue.NewTransportError("s3."+apiErr.ErrorCode(), err)
	}
	return mailqueue.NewTransportError("s3", err)
}
