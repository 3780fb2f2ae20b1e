package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileRequest names one object of a source's dataset.
type FileRequest struct {
	// Source is the registry name used to resolve the remote connection.
	Source string
	// Key selects a named object from the source's remote LUT; empty means
	// the primary remote path.
	Key string
	// Object overrides the configured remote object path when set.
	Object string
	// Local is the slash-separated cache path of the file.
	Local string
}

// File resolves a dataset file to a local path.
//
// Local runtime: a cached file is used as-is. A missing file is pulled into
// the cache when ETL_PULL_MISSING_FILES is enabled, otherwise the request
// fails with ErrDatasetUnavailable and the caller skips the combination.
// Non-local runtime: the object is always downloaded to a temp file.
// In fetch mode the file is only made present, never loaded.
func (e *Env) File(ctx context.Context, req FileRequest, mode Mode) (string, error) {
	log := e.Log.With("source", req.Source, "file", req.Local)

	if !e.Cfg.LocalRuntime {
		if mode == ModeFetch {
			// Nothing to warm: without a local cache every load pulls fresh.
			return "", nil
		}
		return e.pullTemp(ctx, req)
	}

	if e.Cache.Has(req.Local) {
		log.Info("using cached dataset", "path", e.Cache.Path(req.Local))
		return e.Cache.Path(req.Local), nil
	}

	if !e.Cfg.PullMissingFiles {
		log.Error("dataset not found in cache and pulling is disabled")
		return "", fmt.Errorf("%s: %w", req.Local, ErrDatasetUnavailable)
	}

	log.Info("dataset not found in cache, pulling from remote")
	body, err := e.open(ctx, req)
	if err != nil {
		return "", err
	}
	defer body.Close() //nolint:errcheck

	path, err := e.Cache.Store(req.Local, body)
	if err != nil {
		return "", err
	}
	return path, nil
}

// open resolves the remote object name and starts the download.
func (e *Env) open(ctx context.Context, req FileRequest) (io.ReadCloser, error) {
	remote := e.Cfg.RemoteFor(req.Source)
	object := req.Object
	if object == "" {
		var err error
		object, err = remote.Object(req.Key)
		if err != nil {
			return nil, fmt.Errorf("resolve remote object for %s: %w", req.Source, err)
		}
	}

	gw, err := e.Gateway(req.Source)
	if err != nil {
		return nil, fmt.Errorf("gateway for %s: %w", req.Source, err)
	}
	body, err := gw.Fetch(ctx, object)
	if err != nil {
		return nil, fmt.Errorf("fetch %s for %s: %w", object, req.Source, err)
	}
	return body, nil
}

// pullTemp downloads the object to a temp file for non-local runtimes.
func (e *Env) pullTemp(ctx context.Context, req FileRequest) (string, error) {
	body, err := e.open(ctx, req)
	if err != nil {
		return "", err
	}
	defer body.Close() //nolint:errcheck

	tmp, err := os.CreateTemp("", "geoatlas-"+filepath.Base(req.Local)+"-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer tmp.Close() //nolint:errcheck

	if _, err := io.Copy(tmp, body); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("download %s: %w", req.Local, err)
	}
	return tmp.Name(), nil
}
