package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"geoatlas/internal/config"
)

// S3Gateway reads objects from an S3-compatible store. It uses path-style
// addressing so MinIO and other self-hosted endpoints work out of the box.
type S3Gateway struct {
	client *s3.Client
	bucket string
}

// NewS3Gateway creates a gateway for the given remote connection.
func NewS3Gateway(remote config.SourceRemote) (*S3Gateway, error) {
	if remote.Server == "" {
		return nil, fmt.Errorf("s3 gateway: no server configured")
	}
	if remote.Bucket == "" {
		return nil, fmt.Errorf("s3 gateway: no bucket configured")
	}

	scheme := "https"
	if remote.UseTLS != nil && !*remote.UseTLS {
		scheme = "http"
	}
	endpoint := fmt.Sprintf("%s://%s", scheme, remote.Server)

	region := remote.Region
	if region == "" {
		region = "us-east-1"
	}

	client := s3.New(s3.Options{
		Region: region,
		Credentials: credentials.NewStaticCredentialsProvider(
			remote.AccessKey, remote.SecretKey, "",
		),
		BaseEndpoint: aws.String(endpoint),
		UsePathStyle: true,
	})

	return &S3Gateway{client: client, bucket: remote.Bucket}, nil
}

// Fetch streams an object from the bucket.
func (g *S3Gateway) Fetch(ctx context.Context, object string) (io.ReadCloser, error) {
	out, err := g.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(object),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("%s/%s: %w", g.bucket, object, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("get s3 object %s/%s: %w", g.bucket, object, err)
	}
	return out.Body, nil
}
