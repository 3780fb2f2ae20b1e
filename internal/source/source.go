// Package source implements the registered ETL data sources: dataset
// extraction from the local cache or remote object stores, per-source
// transformation into canonical form, and persistence into the geodata and
// metadata stores.
package source

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"

	"geoatlas/internal/config"
	"geoatlas/internal/metastore"
	"geoatlas/internal/qualities"
	"geoatlas/internal/storage"
	"geoatlas/internal/tier"
)

// ErrDatasetUnavailable is returned when a source dataset is neither cached
// locally nor allowed to be pulled. Callers skip the affected combination
// instead of failing the run.
var ErrDatasetUnavailable = errors.New("dataset unavailable")

// Mode selects between a full extraction and a fetch-only pre-warm.
type Mode int

const (
	// ModeLoad resolves the dataset for loading.
	ModeLoad Mode = iota
	// ModeFetch only ensures the dataset is present in the local cache.
	ModeFetch
)

// Env bundles the runtime collaborators every source needs.
type Env struct {
	Cfg   *config.Config
	Cache *storage.Cache
	Geo   *sql.DB
	Meta  *metastore.Store
	Mat   *tier.Materializer
	Log   *slog.Logger

	mu       sync.Mutex
	gateways map[string]storage.Gateway
}

// NewEnv creates the shared source environment.
func NewEnv(cfg *config.Config, geo *sql.DB, meta *metastore.Store, log *slog.Logger) *Env {
	return &Env{
		Cfg:   cfg,
		Cache: storage.NewCache(cfg.ResourcesDir),
		Geo:   geo,
		Meta:  meta,
		Mat:   tier.NewMaterializer(geo, log),
		Log:   log,
		// gateways built lazily per source
		gateways: make(map[string]storage.Gateway),
	}
}

// Gateway returns the remote gateway for a source, building it on first use.
func (e *Env) Gateway(sourceName string) (storage.Gateway, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gw, ok := e.gateways[sourceName]; ok {
		return gw, nil
	}
	gw, err := storage.NewGateway(e.Cfg.RemoteFor(sourceName))
	if err != nil {
		return nil, err
	}
	e.gateways[sourceName] = gw
	return gw, nil
}

// SourceFile is one local dataset file, optionally with a layer name for
// multi-layer formats.
type SourceFile struct {
	Path  string
	Layer string
}

// Dataset is the handle a source passes from Extract through Transform to
// Persist. Geometry sources carry files plus a canonical SELECT; tabular
// sources carry scanned rows.
type Dataset struct {
	Files     map[string]SourceFile
	SelectSQL string
	Rows      any
}

// DataSource is the standard extract/transform/persist flow of one source.
type DataSource interface {
	Name() string
	Qualities() qualities.Space
	Extract(ctx context.Context, env *Env, combo *qualities.Combination, mode Mode) (*Dataset, error)
	Transform(ctx context.Context, env *Env, combo *qualities.Combination, ds *Dataset) error
	Persist(ctx context.Context, env *Env, combo *qualities.Combination, ds *Dataset) error
}

// CustomFlow is implemented by sources whose update cannot be expressed as
// the standard per-combination flow.
type CustomFlow interface {
	RunCustom(ctx context.Context, env *Env) error
	FetchCustom(ctx context.Context, env *Env) error
}

// All returns the registered sources in ETL execution order. The metadata
// source runs first so later sources update adaption dates on existing
// records; wahlkreise runs after the adm1 geometry it links against.
func All() []DataSource {
	return []DataSource{
		&Metadata{},
		&NaturalEarth{},
		&VG250{},
		&Population{},
		&Wahlkreise{},
		&Consulates{},
		&PopulatedPlaces{},
		&Nomenclature{},
	}
}

// ByName resolves a registered source, nil when unknown.
func ByName(name string) DataSource {
	for _, src := range All() {
		if src.Name() == name {
			return src
		}
	}
	return nil
}
