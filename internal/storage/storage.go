// Package storage fetches source datasets from remote object stores and
// maintains the local dataset cache.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"geoatlas/internal/config"
)

// ErrObjectNotFound is returned when the remote store has no such object.
var ErrObjectNotFound = errors.New("object not found")

// Gateway reads objects from a remote object store.
type Gateway interface {
	// Fetch streams the object's content. The caller closes the reader.
	Fetch(ctx context.Context, object string) (io.ReadCloser, error)
}

// NewGateway builds the gateway for a source's remote configuration.
func NewGateway(remote config.SourceRemote) (Gateway, error) {
	switch remote.Backend {
	case "", "s3":
		return NewS3Gateway(remote)
	case "gcs":
		return NewGCSGateway(remote)
	case "azure":
		return NewAzureGateway(remote)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", remote.Backend)
	}
}
