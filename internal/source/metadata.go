package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"geoatlas/internal/metastore"
	"geoatlas/internal/qualities"
)

// Metadata loads the per-source metadata documents. It runs first so the
// geometry and tabular sources find an existing record when they update the
// extent, reference system and adaption date.
type Metadata struct{}

func (s *Metadata) Name() string { return "metadata" }

func (s *Metadata) Qualities() qualities.Space {
	return qualities.Space{
		{Name: "source", Values: []string{
			"consulates", "gadm", "naturalearth", "population", "wahlkreise", "vg250",
		}},
	}
}

func (s *Metadata) Extract(ctx context.Context, env *Env, combo *qualities.Combination, mode Mode) (*Dataset, error) {
	src := combo.Value("source")
	remote := env.Cfg.RemoteFor(s.Name())
	path, err := env.File(ctx, FileRequest{
		Source: s.Name(),
		Object: remote.Path + src + ".json",
		Local:  "metadata/" + src + ".json",
	}, mode)
	if err != nil {
		return nil, err
	}
	if mode == ModeFetch {
		return &Dataset{}, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read metadata document: %w", err)
	}
	return &Dataset{Rows: json.RawMessage(raw)}, nil
}

func (s *Metadata) Transform(_ context.Context, _ *Env, combo *qualities.Combination, ds *Dataset) error {
	raw, ok := ds.Rows.(json.RawMessage)
	if !ok {
		return nil
	}
	doc, err := parseMetadataDocument(raw, combo.Value("source"))
	if err != nil {
		return err
	}
	ds.Rows = doc
	return nil
}

func (s *Metadata) Persist(ctx context.Context, env *Env, _ *qualities.Combination, ds *Dataset) error {
	doc, ok := ds.Rows.(metastore.Document)
	if !ok {
		return nil
	}
	env.Log.Info("replacing metadata document", "source", doc.Source)
	return env.Meta.ReplaceDocument(ctx, doc)
}

// metadataDocument mirrors the document feed. The feed labels the origin
// list "origin", singular.
type metadataDocument struct {
	Title            string             `json:"title"`
	Abstract         string             `json:"abstract"`
	Lineage          string             `json:"lineage"`
	ResponsibleParty string             `json:"responsibleParty"`
	CRS              string             `json:"crs"`
	Format           string             `json:"format"`
	DataType         string             `json:"datatype"`
	GeoBox           []float64          `json:"geoBox"`
	Keywords         []string           `json:"keywords"`
	Origin           []metastore.Origin `json:"origin"`
}

// parseMetadataDocument decodes one document. Some exports wrap the document
// in a single-record object keyed "0"; both forms are accepted. The source
// name is taken from the registry, not from the document.
func parseMetadataDocument(raw []byte, source string) (metastore.Document, error) {
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return metastore.Document{}, fmt.Errorf("parse metadata document for %s: %w", source, err)
	}
	if inner, ok := wrapper["0"]; ok {
		raw = inner
	}

	var doc metadataDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return metastore.Document{}, fmt.Errorf("parse metadata document for %s: %w", source, err)
	}
	return metastore.Document{
		Source:           source,
		Title:            doc.Title,
		Abstract:         doc.Abstract,
		Lineage:          doc.Lineage,
		ResponsibleParty: doc.ResponsibleParty,
		CRS:              doc.CRS,
		Format:           doc.Format,
		DataType:         doc.DataType,
		GeoBox:           doc.GeoBox,
		Keywords:         doc.Keywords,
		Origins:          doc.Origin,
	}, nil
}
