package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"geoatlas/internal/config"
)

// AzureGateway reads blobs from Azure Blob Storage using shared-key
// credentials. The bucket field of the remote configuration names the
// container.
type AzureGateway struct {
	client    *azblob.Client
	container string
}

// NewAzureGateway creates a gateway for the given remote connection.
func NewAzureGateway(remote config.SourceRemote) (*AzureGateway, error) {
	if remote.AzureAccount == "" || remote.AzureKey == "" {
		return nil, fmt.Errorf("azure gateway: account and key are required")
	}
	if remote.Bucket == "" {
		return nil, fmt.Errorf("azure gateway: no container configured")
	}

	cred, err := azblob.NewSharedKeyCredential(remote.AzureAccount, remote.AzureKey)
	if err != nil {
		return nil, fmt.Errorf("create shared key credential: %w", err)
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net", remote.AzureAccount)
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create azure blob client: %w", err)
	}

	return &AzureGateway{client: client, container: remote.Bucket}, nil
}

// Fetch streams a blob from the container.
func (g *AzureGateway) Fetch(ctx context.Context, object string) (io.ReadCloser, error) {
	resp, err := g.client.DownloadStream(ctx, g.container, object, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, fmt.Errorf("%s/%s: %w", g.container, object, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("download blob %s/%s: %w", g.container, object, err)
	}
	return resp.Body, nil
}
