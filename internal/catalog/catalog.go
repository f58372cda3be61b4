// Package catalog holds the static operation catalog: every application the
// platform ships, its modules, and the metered operations inside them. The
// catalog is loaded once at process start and never mutated afterwards.
package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Operation struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

type Module struct {
	Code       string      `yaml:"code"`
	Name       string      `yaml:"name"`
	Operations []Operation `yaml:"operations"`
}

type Application struct {
	Code    string   `yaml:"code"`
	Name    string   `yaml:"name"`
	Active  bool     `yaml:"active"`
	Modules []Module `yaml:"modules"`
}

type catalogFile struct {
	Version      int           `yaml:"version"`
	Applications []Application `yaml:"applications"`
}

type Catalog struct {
	byCode map[string]Application
}

func Parse(b []byte) (*Catalog, error) {
	var cf catalogFile
	if err := yaml.Unmarshal(b, &cf); err != nil {
		return nil, err
	}
	if cf.Version != 1 {
		return nil, errors.New("catalog: unsupported version")
	}
	if len(cf.Applications) == 0 {
		return nil, errors.New("catalog: empty")
	}

	byCode := make(map[string]Application, len(cf.Applications))
	for _, app := range cf.Applications {
		code := strings.ToLower(strings.TrimSpace(app.Code))
		if code == "" {
			return nil, errors.New("catalog: application without code")
		}
		if _, exists := byCode[code]; exists {
			return nil, errors.New("catalog: duplicate application code " + code)
		}
		app.Code = code
		byCode[code] = app
	}
	return &Catalog{byCode: byCode}, nil
}

func Load(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// LoadFromEnv reads CATALOG_PATH, falling back to config/catalog.yaml walked
// up from the working directory.
func LoadFromEnv() (*Catalog, error) {
	path := os.Getenv("CATALOG_PATH")
	if path == "" {
		p, err := defaultCatalogPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return Load(path)
}

func defaultCatalogPath() (string, error) {
	path := "config/catalog.yaml"
	for range 8 {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("catalog: config not found")
}

func (c *Catalog) Application(code string) (Application, bool) {
	app, ok := c.byCode[strings.ToLower(strings.TrimSpace(code))]
	return app, ok
}

// ActiveApplication resolves code to a known, active catalog entry.
func (c *Catalog) ActiveApplication(code string) (Application, bool) {
	app, ok := c.Application(code)
	if !ok || !app.Active {
		return Application{}, false
	}
	return app, true
}

// ModuleCodes lists the module codes of an application in catalog order.
// Unknown applications yield nil.
func (c *Catalog) ModuleCodes(appCode string) []string {
	app, ok := c.Application(appCode)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(app.Modules))
	for _, m := range app.Modules {
		out = append(out, m.Code)
	}
	return out
}
