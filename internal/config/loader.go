package config

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// loadYAMLFile decodes the YAML document at path onto base, so fields the
// file omits keep their Default() value. Unknown keys are rejected; a typo in
// the config file should fail loudly instead of silently doing nothing.
func loadYAMLFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	cfg := base
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config file: %w", err)
	}

	// A YAML file may contain more than one document; config files never do.
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return Config{}, fmt.Errorf("config file must contain a single document")
	}

	return cfg, nil
}
