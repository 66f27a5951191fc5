package dispatch

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// FamilyParams is the persisted per-family default parameter set, keyed by
// the family's registered name (Descriptor.Name).
type FamilyParams map[string]map[string]string

// DefaultFamilyParams returns an empty parameter set; every family applies
// its own defaults when params is nil or missing its key.
func DefaultFamilyParams() FamilyParams {
	return FamilyParams{}
}

// LoadConfigFromFile loads per-family default parameters from a JSON file.
// A missing file is not an error: it yields an empty, default parameter
// set rather than failing session setup.
func LoadConfigFromFile(path string) (FamilyParams, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultFamilyParams(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var params FamilyParams
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, err
	}
	return params, nil
}

// SaveConfigToFile writes params to path as indented JSON, creating the
// containing directory if needed.
func SaveConfigToFile(params FamilyParams, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(params, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ConfigPaths lists the conventional locations searched for a family
// parameter file, in priority order.
func ConfigPaths() []string {
	home, _ := os.UserHomeDir()
	return []string{
		filepath.Join(home, ".divecomputer", "config.json"),
		"/etc/divecomputer/config.json",
		"./divecomputer-config.json",
	}
}
