package source

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/kozaktomas/face-gallery/internal/config"
)

// S3Lister is the part of the S3 API used by [S3]. The [s3.Client] type satisfies it.
type S3Lister interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3 lists photos stored in an S3 bucket (or any S3-compatible store) and
// identifies them by their public URL, base URL + "/" + object key.
type S3 struct {
	client     S3Lister
	bucket     string
	prefix     string
	baseURL    string
	extensions []string
}

// NewS3 creates an S3 source. If baseURL is empty, the virtual-hosted
// AWS URL of the bucket is used.
func NewS3(client S3Lister, bucket, prefix, baseURL string, extensions []string) *S3 {
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.amazonaws.com", bucket)
	}
	return &S3{
		client:     client,
		bucket:     bucket,
		prefix:     prefix,
		baseURL:    strings.TrimRight(baseURL, "/"),
		extensions: extensions,
	}
}

// NewS3FromConfig builds an [s3.Client] from static configuration. Without
// an access key the bucket is read anonymously.
func NewS3FromConfig(_ context.Context, cfg config.S3Config, extensions []string) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 source requires a bucket")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := s3.Options{
		Region:      region,
		Credentials: aws.AnonymousCredentials{},
	}
	if cfg.AccessKeyID != "" {
		key, secret := cfg.AccessKeyID, cfg.SecretAccessKey
		opts.Credentials = aws.NewCredentialsCache(aws.CredentialsProviderFunc(
			func(context.Context) (aws.Credentials, error) {
				return aws.Credentials{AccessKeyID: key, SecretAccessKey: secret, Source: "face-gallery config"}, nil
			}))
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
		opts.UsePathStyle = true
	}

	return NewS3(s3.New(opts), cfg.Bucket, cfg.Prefix, cfg.BaseURL, extensions), nil
}

func (s *S3) Name() string {
	return "s3"
}

func (s *S3) ListPhotos(ctx context.Context) ([]string, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	}
	if s.prefix != "" {
		input.Prefix = aws.String(s.prefix)
	}

	var urls []string
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			if isNoSuchBucket(err) {
				return nil, fmt.Errorf("s3 bucket %q does not exist", s.bucket)
			}
			return nil, fmt.Errorf("failed to list s3 bucket %q: %w", s.bucket, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == "" || strings.HasSuffix(key, "/") {
				continue
			}
			urls = append(urls, s.baseURL+"/"+key)
		}
	}

	urls = FilterExtensions(urls, s.extensions)
	sort.Strings(urls)
	return urls, nil
}

func isNoSuchBucket(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "NoSuchBucket"
	}
	return false
}
