package query

import (
	"context"

	"geoatlas/internal/metastore"
)

// MetadataService answers the metadata catalogue queries.
type MetadataService struct {
	store *metastore.Store
}

func NewMetadataService(store *metastore.Store) *MetadataService {
	return &MetadataService{store: store}
}

// Sources returns the short listing of available sources.
func (s *MetadataService) Sources(ctx context.Context) ([]metastore.SourceInfo, error) {
	return s.store.Sources(ctx)
}

// Query returns the full metadata documents matching the filter.
func (s *MetadataService) Query(ctx context.Context, f metastore.Filter) ([]metastore.Document, error) {
	return s.store.Query(ctx, f)
}
