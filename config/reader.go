package config

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/macro-rover/navigator/utils"
)

// Format is a config file encoding.
type Format string

// The supported encodings.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the encoding from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", errors.Errorf("cannot tell the format of config file %q; use .json, .yaml or .yml", path)
}

// Read reads a config from the given file, expanding ${VAR} references from the environment
// before decoding.
func Read(path string) (*Config, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	buf, err := envsubst.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read config file %q", path)
	}
	cfg, err := FromBytes(buf, format)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid config file %q", path)
	}
	return cfg, nil
}

// FromBytes decodes, defaults and validates a config.
func FromBytes(buf []byte, format Format) (*Config, error) {
	raw := map[string]interface{}{}
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(buf, &raw); err != nil {
			return nil, errors.Wrap(err, "cannot parse JSON")
		}
	case FormatYAML:
		if err := yaml.Unmarshal(buf, &raw); err != nil {
			return nil, errors.Wrap(err, "cannot parse YAML")
		}
	default:
		return nil, errors.Errorf("unknown config format %q", format)
	}
	if raw == nil {
		raw = map[string]interface{}{}
	}

	var cfg Config
	if err := utils.DecodeAttributes(raw, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
