// Package catalog loads module type descriptions from TOML, YAML or JSON
// files into a model.TypeRegistry. A catalogue may be split over several
// files selected with a doublestar pattern such as "types/**/*.toml".
//
//	[[types]]
//	name = "Demo.Pipeline"
//	display_name = "Pipeline"
//
//	  [[types.hooks]]
//	  name = "Steps"
//	  cardinality = "any-number"
//	  type = "Demo.Step"
package catalog

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/ritzau/msedit/pkg/logging"
	"github.com/ritzau/msedit/pkg/model"
)

type hookEntry struct {
	Name          string `koanf:"name"`
	Cardinality   string `koanf:"cardinality"`
	Type          string `koanf:"type"`
	Parameter     bool   `koanf:"parameter"`
	ParameterType string `koanf:"parameter_type"`
	Default       string `koanf:"default"`
}

type typeEntry struct {
	Name        string      `koanf:"name"`
	DisplayName string      `koanf:"display_name"`
	Hooks       []hookEntry `koanf:"hooks"`
}

// Files lists the catalogue files matching pattern in lexical order. A
// pattern without wildcards names a single file.
func Files(pattern string) ([]string, error) {
	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("invalid catalogue pattern %s: %w", pattern, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no type catalogue matches %s: %w", pattern, fs.ErrNotExist)
	}
	slices.Sort(matches)
	return matches, nil
}

// Load reads every catalogue file matching pattern into one registry. A
// type defined in two files is an error.
func Load(pattern string) (*model.TypeRegistry, error) {
	paths, err := Files(pattern)
	if err != nil {
		return nil, err
	}
	r := model.NewTypeRegistry()
	for _, path := range paths {
		if err := loadInto(r, path); err != nil {
			return nil, err
		}
	}
	logging.Debug("type catalogue loaded", "pattern", pattern, "files", len(paths), "types", len(r.Types()))
	return r, nil
}

// LoadFile reads the catalogue at path into a new registry
func LoadFile(path string) (*model.TypeRegistry, error) {
	r := model.NewTypeRegistry()
	if err := loadInto(r, path); err != nil {
		return nil, err
	}
	logging.Debug("type catalogue loaded", "path", path, "types", len(r.Types()))
	return r, nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return toml.Parser(), nil
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	}
	return nil, fmt.Errorf("unsupported type catalogue format: %s", path)
}

func loadInto(r *model.TypeRegistry, path string) error {
	parser, err := parserFor(path)
	if err != nil {
		return err
	}
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), parser); err != nil {
		return fmt.Errorf("failed to read type catalogue %s: %w", path, err)
	}
	if err := register(k, r); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func register(k *koanf.Koanf, r *model.TypeRegistry) error {
	var entries []typeEntry
	if err := k.Unmarshal("types", &entries); err != nil {
		return fmt.Errorf("failed to decode types: %w", err)
	}
	for _, e := range entries {
		desc := model.TypeDescription{
			Name:        model.TypeName(e.Name),
			DisplayName: e.DisplayName,
		}
		for _, h := range e.Hooks {
			card, err := model.ParseCardinality(h.Cardinality)
			if err != nil {
				return fmt.Errorf("type %s hook %s: %w", e.Name, h.Name, err)
			}
			if h.Parameter && h.ParameterType == "" {
				return fmt.Errorf("type %s hook %s: parameter hooks need a parameter_type", e.Name, h.Name)
			}
			desc.Hooks = append(desc.Hooks, &model.Hook{
				Name:          h.Name,
				Cardinality:   card,
				Type:          model.TypeName(h.Type),
				IsParameter:   h.Parameter,
				ParameterType: model.TypeName(h.ParameterType),
				DefaultValue:  h.Default,
			})
		}
		if err := r.Register(desc); err != nil {
			return err
		}
	}
	return nil
}
