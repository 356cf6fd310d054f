package statuscheck

import (
    "context"
    "fmt"

    "github.com/aws/aws-sdk-go-v2/aws"
    awscfg "github.com/aws/aws-sdk-go-v2/config"
    "github.com/aws/aws-sdk-go-v2/credentials"
    "github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Options locates the bucket. Endpoint targets S3-compatible stores
// (MinIO, R2) and switches to path-style addressing. Without static keys
// the default AWS credential chain applies.
type S3Options struct {
    Bucket          string
    Region          string
    Endpoint        string
    AccessKeyID     string
    SecretAccessKey string
}

// S3Bucket probes one bucket with HeadBucket.
type S3Bucket struct {
    client *s3.Client
    bucket string
}

func NewS3Bucket(ctx context.Context, opts S3Options) (*S3Bucket, error) {
    loaders := []func(*awscfg.LoadOptions) error{}
    if opts.Region != "" {
        loaders = append(loaders, awscfg.WithRegion(opts.Region))
    }
    if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
        loaders = append(loaders, awscfg.WithCredentialsProvider(
            credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
        ))
    }
    cfg, err := awscfg.LoadDefaultConfig(ctx, loaders...)
    if err != nil {
        return nil, fmt.Errorf("failed to load AWS config: %w", err)
    }

    cli := s3.NewFromConfig(cfg, func(o *s3.Options) {
        if opts.Endpoint != "" {
            o.BaseEndpoint = aws.String(opts.Endpoint)
            o.UsePathStyle = true
        }
    })
    return &S3Bucket{client: cli, bucket: opts.Bucket}, nil
}

func (b *S3Bucket) Name() string { return b.bucket }

func (b *S3Bucket) Head(ctx context.Context) error {
    _, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.bucket)})
    return err
}
