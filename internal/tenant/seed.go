package tenant

import (
	"fmt"
	"os"

	yamlv3 "gopkg.in/yaml.v3"
)

// LoadSeed reads a tenant seed YAML file into a snapshot over defaults.
func LoadSeed(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tenant seed %s: %w", path, err)
	}

	// First pass to learn the tenant id, second over the defaults for it.
	var probe struct {
		TenantID string `yaml:"tenant_id"`
	}
	if err := yamlv3.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("parsing tenant seed %s: %w", path, err)
	}
	if probe.TenantID == "" {
		return nil, fmt.Errorf("tenant seed %s: tenant_id is required", path)
	}

	snap := Defaults(probe.TenantID)
	if err := yamlv3.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("parsing tenant seed %s: %w", path, err)
	}
	return snap, nil
}

// SaveSeed writes a snapshot as a seed YAML file.
func SaveSeed(snap *Snapshot, path string) error {
	data, err := yamlv3.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshalling tenant seed: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing tenant seed %s: %w", path, err)
	}
	return nil
}
