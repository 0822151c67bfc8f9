package config

import (
	"encoding/json"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"
)

// Read loads, environment-substitutes, and validates a configuration file.
// Fields absent from the file keep their Default values.
func Read(path string) (*Config, error) {
	raw, err := envsubst.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading config file %q", path)
	}
	return FromBytes(raw)
}

// FromBytes parses and validates configuration JSON on top of Default.
func FromBytes(raw []byte) (*Config, error) {
	cfg := Default()
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, errors.Wrap(err, "error parsing config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return &cfg, nil
}
