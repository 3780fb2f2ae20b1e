package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SourceRemote overrides parts of the default remote connection for one
// data source. Zero-valued fields fall back to the defaults.
type SourceRemote struct {
	Backend   string `yaml:"backend"` // "s3" (default), "gcs" or "azure"
	Server    string `yaml:"server"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseTLS    *bool  `yaml:"use_tls"`

	// GCSKeyFile is a service-account key file for the gcs backend.
	GCSKeyFile string `yaml:"gcs_key_file"`
	// AzureAccount and AzureKey are shared-key credentials for the azure
	// backend; the account name doubles as the service host.
	AzureAccount string `yaml:"azure_account"`
	AzureKey     string `yaml:"azure_key"`

	// Path is the source's primary object. LUT maps the named objects of
	// sources that pull more than one file.
	Path string            `yaml:"path"`
	LUT  map[string]string `yaml:"lut"`
}

type remoteSourcesFile struct {
	Sources map[string]SourceRemote `yaml:"sources"`
}

// LoadRemoteSources parses a per-source remote overrides YAML file.
func LoadRemoteSources(path string) (map[string]SourceRemote, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var doc remoteSourcesFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc.Sources, nil
}

// RemoteFor resolves the effective remote configuration for a source:
// the per-source override merged over the defaults.
func (c *Config) RemoteFor(source string) SourceRemote {
	out := SourceRemote{
		Backend:   "s3",
		Server:    c.Remote.Server,
		AccessKey: c.Remote.AccessKey,
		SecretKey: c.Remote.SecretKey,
		Bucket:    c.Remote.Bucket,
		Region:    c.Remote.Region,
		Path:      c.Remote.Path,
	}
	useTLS := c.Remote.UseTLS

	if override, ok := c.Sources[source]; ok {
		if override.Backend != "" {
			out.Backend = override.Backend
		}
		if override.Server != "" {
			out.Server = override.Server
		}
		if override.AccessKey != "" {
			out.AccessKey = override.AccessKey
		}
		if override.SecretKey != "" {
			out.SecretKey = override.SecretKey
		}
		if override.Bucket != "" {
			out.Bucket = override.Bucket
		}
		if override.Region != "" {
			out.Region = override.Region
		}
		if override.Path != "" {
			out.Path = override.Path
		}
		if override.UseTLS != nil {
			useTLS = *override.UseTLS
		}
		out.GCSKeyFile = override.GCSKeyFile
		out.AzureAccount = override.AzureAccount
		out.AzureKey = override.AzureKey
		out.LUT = override.LUT
	}

	out.UseTLS = &useTLS
	return out
}

// Object resolves a named object of a source through its LUT, falling back
// to the primary path for the empty key.
func (r SourceRemote) Object(key string) (string, error) {
	if key == "" {
		if r.Path == "" {
			return "", fmt.Errorf("no remote path configured")
		}
		return r.Path, nil
	}
	obj, ok := r.LUT[key]
	if !ok || obj == "" {
		return "", fmt.Errorf("no remote object configured for %q", key)
	}
	return obj, nil
}
