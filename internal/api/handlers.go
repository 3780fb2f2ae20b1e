package api

import (
	"net/http"
	"strings"

	"geoatlas/internal/geodata"
	"geoatlas/internal/metastore"
	"geoatlas/internal/query"
)

func (s *Server) handleGeo(w http.ResponseWriter, r *http.Request) {
	p := query.GeoParams{
		Source:      queryString(r, "source", ""),
		AerialLevel: strings.ToUpper(queryString(r, "filter_aerial_level", "")),
		AerialCodes: queryList(r, "filter_aerial_code"),
	}

	var err error
	if p.Zoom, err = queryInt(r, "zoom_level", 2); err != nil {
		s.writeError(w, err)
		return
	}
	if p.BBox, err = decodeBBox(r, geodata.WorldBBox()); err != nil {
		s.writeError(w, err)
		return
	}
	if p.Geometries, err = queryBool(r, "feature_geometries", true); err != nil {
		s.writeError(w, err)
		return
	}
	if p.Population, err = queryBool(r, "feature_population", false); err != nil {
		s.writeError(w, err)
		return
	}
	if p.Consulates, err = queryBool(r, "feature_consulates", false); err != nil {
		s.writeError(w, err)
		return
	}
	if p.Cities, err = queryBool(r, "feature_cities", true); err != nil {
		s.writeError(w, err)
		return
	}

	fc, err := s.geo.Query(r.Context(), p)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "max-age=600")
	s.writeJSON(w, http.StatusOK, fc)
}

func (s *Server) handleVG250(w http.ResponseWriter, r *http.Request) {
	p := query.VG250Params{
		AggLevel:    queryString(r, "agg_level", "verwaltungsgemeinschaft"),
		FilterLevel: queryString(r, "filter_level", ""),
		FilterNames: queryList(r, "filter_names"),
		FilterCodes: queryList(r, "filter_codes"),
		ZoomSet:     queryHas(r, "zoom_level"),
	}

	var err error
	if p.Zoom, err = queryInt(r, "zoom_level", 0); err != nil {
		s.writeError(w, err)
		return
	}
	if p.BBox, err = decodeBBox(r, geodata.BBox{}); err != nil {
		s.writeError(w, err)
		return
	}

	fc, err := s.vg.Query(r.Context(), p)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, fc)
}

func (s *Server) handlePopulation(w http.ResponseWriter, r *http.Request) {
	p := query.PopulationParams{
		Codes:  queryList(r, "filter_aerial_code"),
		Source: queryString(r, "source", "WPP2022"),
	}

	var err error
	if p.Years, err = queryIntList(r, "years"); err != nil {
		s.writeError(w, err)
		return
	}
	if p.YearsFrom, err = queryIntPtr(r, "years_from"); err != nil {
		s.writeError(w, err)
		return
	}
	if p.YearsTo, err = queryIntPtr(r, "years_to"); err != nil {
		s.writeError(w, err)
		return
	}

	records, err := s.pop.Query(r.Context(), p)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	availableOnly, err := queryBool(r, "available_sources", false)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if availableOnly {
		infos, err := s.meta.Sources(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, infos)
		return
	}

	f := metastore.Filter{
		Sources: queryList(r, "source"),
		Keyword: queryString(r, "filter_keyword", ""),
	}
	// The extent filter only applies when all four corners are given.
	if queryHas(r, "filter_boundingbox_southwest_lat") &&
		queryHas(r, "filter_boundingbox_southwest_lng") &&
		queryHas(r, "filter_boundingbox_northeast_lat") &&
		queryHas(r, "filter_boundingbox_northeast_lng") {
		bbox, err := decodeBBox(r, geodata.BBox{})
		if err != nil {
			s.writeError(w, err)
			return
		}
		f.BBox = bbox.Slice()
	}

	docs, err := s.meta.Query(r.Context(), f)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, docs)
}

// decodeBBox reads the four bounding box corners, falling back to def for
// absent parameters.
func decodeBBox(r *http.Request, def geodata.BBox) (geodata.BBox, error) {
	var (
		b   geodata.BBox
		err error
	)
	if b.XMin, err = queryFloat(r, "filter_boundingbox_southwest_lng", def.XMin); err != nil {
		return b, err
	}
	if b.YMin, err = queryFloat(r, "filter_boundingbox_southwest_lat", def.YMin); err != nil {
		return b, err
	}
	if b.XMax, err = queryFloat(r, "filter_boundingbox_northeast_lng", def.XMax); err != nil {
		return b, err
	}
	if b.YMax, err = queryFloat(r, "filter_boundingbox_northeast_lat", def.YMax); err != nil {
		return b, err
	}
	return b, nil
}
