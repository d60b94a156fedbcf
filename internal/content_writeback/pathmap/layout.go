package pathmap

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ProjectKind selects between framework page sources and plain static output
type ProjectKind string

// RouteStrategy selects how URL segments become file names
type RouteStrategy string

const (
	KindPages  ProjectKind = "pages"
	KindStatic ProjectKind = "static"

	RoutesNested RouteStrategy = "nested"
	RoutesFlat   RouteStrategy = "flat"

	staticExtension = "html"
	indexBaseName   = "index"
)

var ErrInvalidLayout = errors.New("invalid layout configuration")

var validate = validator.New()

// Layout is the (project kind x route strategy) pair that governs URL to file mapping.
// SourceDir and Extension only apply to KindPages.
type Layout struct {
	Kind      ProjectKind   `json:"kind" yaml:"kind" validate:"required,oneof=pages static"`
	Routes    RouteStrategy `json:"routes" yaml:"routes" validate:"required,oneof=nested flat"`
	SourceDir string        `json:"source_dir,omitempty" yaml:"source_dir" validate:"omitempty,excludes=.."`
	Extension string        `json:"extension,omitempty" yaml:"extension" validate:"required_if=Kind pages,omitempty,alphanum,max=10"`
}

// Validate checks the layout fields.
func (l Layout) Validate() error {
	if err := validate.Struct(l); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLayout, err)
	}
	return nil
}

// FileExtension is the extension written for every file in this layout
func (l Layout) FileExtension() string {
	if l.Kind == KindStatic {
		return staticExtension
	}
	return l.Extension
}

// IndexFileName is the file name used for directory-style routes and the root
func (l Layout) IndexFileName() string {
	return indexBaseName + "." + l.FileExtension()
}

var presets = map[string]Layout{
	"astro":  {Kind: KindPages, Routes: RoutesNested, SourceDir: "src/pages", Extension: "astro"},
	"next":   {Kind: KindPages, Routes: RoutesNested, SourceDir: "pages", Extension: "tsx"},
	"hugo":   {Kind: KindPages, Routes: RoutesNested, SourceDir: "content", Extension: "md"},
	"static": {Kind: KindStatic, Routes: RoutesNested},
}

// Presets returns the built-in layout names in sorted order
func Presets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Preset returns a built-in layout. An empty routes value keeps the preset's strategy.
func Preset(name string, routes RouteStrategy) (Layout, error) {
	l, ok := presets[name]
	if !ok {
		return Layout{}, fmt.Errorf("%w: unknown preset %q", ErrInvalidLayout, name)
	}
	if routes != "" {
		l.Routes = routes
	}
	return l, l.Validate()
}

// LayoutSet is a named collection of layouts, built-in presets plus file overrides
type LayoutSet map[string]Layout

// Lookup returns the named layout with an optional route strategy override
func (s LayoutSet) Lookup(name string, routes RouteStrategy) (Layout, error) {
	l, ok := s[name]
	if !ok {
		return Layout{}, fmt.Errorf("%w: unknown layout %q", ErrInvalidLayout, name)
	}
	if routes != "" {
		l.Routes = routes
	}
	return l, l.Validate()
}

type layoutFile struct {
	Layouts map[string]Layout `yaml:"layouts"`
}

// LoadLayouts returns the built-in presets merged with layouts declared in a YAML file.
// An empty path returns the presets alone.
func LoadLayouts(path string) (LayoutSet, error) {
	set := make(LayoutSet, len(presets))
	for name, l := range presets {
		set[name] = l
	}
	if path == "" {
		return set, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout file: %w", err)
	}

	var f layoutFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse layout file: %w", err)
	}

	for name, l := range f.Layouts {
		if err := l.Validate(); err != nil {
			return nil, fmt.Errorf("layout %q: %w", name, err)
		}
		set[name] = l
	}
	return set, nil
}
