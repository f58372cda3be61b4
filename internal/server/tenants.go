package server

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type tenantsFileEntry struct {
	ID             string `yaml:"id"`
	Name           string `yaml:"name"`
	ExternalOrgRef string `yaml:"external_org_ref"`
}

type tenantsFile struct {
	Version int                `yaml:"version"`
	Tenants []tenantsFileEntry `yaml:"tenants"`
}

// loadTenantDirectory reads the static directory used when no database is
// wired (development, tests). TENANTS_PATH overrides the default location.
func loadTenantDirectory() (TenantDirectory, error) {
	path := os.Getenv("TENANTS_PATH")
	if path == "" {
		p, err := defaultTenantsPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var tf tenantsFile
	if err := yaml.Unmarshal(b, &tf); err != nil {
		return nil, err
	}
	if tf.Version != 1 {
		return nil, errors.New("tenants: unsupported version")
	}
	if len(tf.Tenants) == 0 {
		return nil, errors.New("tenants: empty")
	}

	entries := make([]DirectoryEntry, 0, len(tf.Tenants))
	for _, t := range tf.Tenants {
		if t.ID == "" {
			return nil, errors.New("tenants: invalid tenant")
		}
		entries = append(entries, DirectoryEntry{
			ID:             t.ID,
			Name:           t.Name,
			ExternalOrgRef: t.ExternalOrgRef,
		})
	}
	return newStaticTenantDirectory(entries), nil
}

func defaultTenantsPath() (string, error) {
	path := "config/tenants.yaml"
	for range 8 {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: tenants config not found")
}
