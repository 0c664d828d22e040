package schema

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// viewFile mirrors the layout of a Cube view YML file. Files may contain
// either a top-level `cubes:` array or a single cube document.
type viewFile struct {
	Cubes []viewCube `yaml:"cubes"`
	// Inline single-cube form.
	Name       string  `yaml:"name"`
	Measures   []Field `yaml:"measures"`
	Dimensions []Field `yaml:"dimensions"`
}

type viewCube struct {
	Name       string  `yaml:"name"`
	Measures   []Field `yaml:"measures"`
	Dimensions []Field `yaml:"dimensions"`
}

// LoadViewFile parses a single Cube view YML file into a Catalog.
func LoadViewFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading view file %s: %w", path, err)
	}

	var vf viewFile
	if err := yaml.Unmarshal(data, &vf); err != nil {
		return nil, fmt.Errorf("parsing view file %s: %w", path, err)
	}

	if len(vf.Cubes) > 0 {
		cube := vf.Cubes[0]
		return &Catalog{ViewName: cube.Name, Measures: cube.Measures, Dimensions: cube.Dimensions}, nil
	}

	if vf.Name == "" {
		return nil, fmt.Errorf("view file %s contains no cube definition", path)
	}
	return &Catalog{ViewName: vf.Name, Measures: vf.Measures, Dimensions: vf.Dimensions}, nil
}

// LoadViewsDir discovers view YML files under dir using the given glob
// patterns and returns one catalog per cube found. Patterns follow
// doublestar syntax relative to dir.
func LoadViewsDir(dir string, patterns []string) ([]*Catalog, error) {
	if len(patterns) == 0 {
		patterns = []string{"**/*.yml", "**/*.yaml"}
	}

	var catalogs []*Catalog
	fsys := os.DirFS(dir)

	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		matched := false
		for _, pattern := range patterns {
			ok, err := doublestar.Match(pattern, path)
			if err != nil {
				return fmt.Errorf("invalid view pattern %q: %w", pattern, err)
			}
			if ok {
				matched = true
				break
			}
		}
		if !matched {
			return nil
		}

		catalog, err := LoadViewFile(filepath.Join(dir, path))
		if err != nil {
			return err
		}
		catalogs = append(catalogs, catalog)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return catalogs, nil
}

// FindView returns the catalog with the given view name from a loaded set,
// matching case-insensitively.
func FindView(catalogs []*Catalog, viewName string) (*Catalog, error) {
	for _, c := range catalogs {
		if strings.EqualFold(c.ViewName, viewName) {
			return c, nil
		}
	}

	names := make([]string, 0, len(catalogs))
	for _, c := range catalogs {
		names = append(names, c.ViewName)
	}
	return nil, fmt.Errorf("view %q not found (available: %s)", viewName, strings.Join(names, ", "))
}
