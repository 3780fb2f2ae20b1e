package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"geoatlas/internal/config"
)

// GCSGateway reads objects from Google Cloud Storage.
type GCSGateway struct {
	client *gcs.Client
	bucket string
}

// NewGCSGateway creates a gateway for the given remote connection. When a
// service-account key file is configured it is used for authentication,
// otherwise application default credentials apply.
func NewGCSGateway(remote config.SourceRemote) (*GCSGateway, error) {
	if remote.Bucket == "" {
		return nil, fmt.Errorf("gcs gateway: no bucket configured")
	}

	var opts []option.ClientOption
	if remote.GCSKeyFile != "" {
		opts = append(opts, option.WithAuthCredentialsFile(option.ServiceAccount, remote.GCSKeyFile))
	}

	client, err := gcs.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}

	return &GCSGateway{client: client, bucket: remote.Bucket}, nil
}

// Fetch streams an object from the bucket.
func (g *GCSGateway) Fetch(ctx context.Context, object string) (io.ReadCloser, error) {
	r, err := g.client.Bucket(g.bucket).Object(object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, fmt.Errorf("%s/%s: %w", g.bucket, object, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("get gcs object %s/%s: %w", g.bucket, object, err)
	}
	return r, nil
}
