package schema

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defs/*.yaml
var builtinDefs embed.FS

// Registry holds all loaded schemas keyed by name. It is populated once by
// Load and never mutated afterwards, so concurrent reads need no locking.
type Registry struct {
	schemas map[string]*Schema
}

// Load builds a registry from the builtin schema definitions, then overlays
// any *.yaml files found in dir (empty dir skips the overlay). An overlay
// schema with the same name replaces the builtin one.
func Load(dir string) (*Registry, error) {
	r := &Registry{schemas: make(map[string]*Schema)}

	entries, err := fs.ReadDir(builtinDefs, "defs")
	if err != nil {
		return nil, fmt.Errorf("schema: read builtin defs: %w", err)
	}
	for _, e := range entries {
		data, err := builtinDefs.ReadFile("defs/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("schema: read builtin %s: %w", e.Name(), err)
		}
		if err := r.add(data); err != nil {
			return nil, fmt.Errorf("schema: builtin %s: %w", e.Name(), err)
		}
	}

	if dir != "" {
		files, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("schema: read dir %s: %w", dir, err)
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".yaml") {
				continue
			}
			data, err := os.ReadFile(filepath.Join(dir, f.Name()))
			if err != nil {
				return nil, fmt.Errorf("schema: read %s: %w", f.Name(), err)
			}
			if err := r.add(data); err != nil {
				return nil, fmt.Errorf("schema: %s: %w", f.Name(), err)
			}
		}
	}

	return r, nil
}

func (r *Registry) add(data []byte) error {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	if err := s.Validate(); err != nil {
		return err
	}
	r.schemas[s.Name] = &s
	return nil
}

// Get returns the schema with the given name.
func (r *Registry) Get(name string) (*Schema, bool) {
	s, ok := r.schemas[name]
	return s, ok
}

// Names returns all schema names in ascending order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
