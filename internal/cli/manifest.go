package cli

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/domain"
	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/pathmap"
)

// manifest is the YAML input of plan and apply
type manifest struct {
	SiteURL string           `yaml:"site_url" validate:"required"`
	Layout  string           `yaml:"layout"`
	Routes  string           `yaml:"routes" validate:"omitempty,oneof=nested flat"`
	Targets []manifestTarget `yaml:"targets" validate:"required,min=1,dive"`
}

type manifestTarget struct {
	URL    string          `yaml:"url" validate:"required"`
	Notes  []string        `yaml:"notes"`
	Blocks []manifestBlock `yaml:"blocks" validate:"dive"`
}

type manifestBlock struct {
	Kind string `yaml:"kind" validate:"required"`
	Text string `yaml:"text"`
}

var validate = validator.New()

func loadManifest(path string) (*manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := validate.Struct(m); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return &m, nil
}

func (m *manifest) targets() []domain.TargetPage {
	out := make([]domain.TargetPage, 0, len(m.Targets))
	for _, t := range m.Targets {
		blocks := make([]domain.ContentBlock, 0, len(t.Blocks))
		for _, b := range t.Blocks {
			blocks = append(blocks, domain.ContentBlock{Kind: domain.BlockKind(b.Kind), Text: b.Text})
		}
		out = append(out, domain.TargetPage{URL: t.URL, Blocks: blocks, Notes: t.Notes})
	}
	return out
}

// layout picks the flag value over the manifest and falls back to the static preset
func (m *manifest) layout(opts *rootOptions) (string, pathmap.RouteStrategy) {
	name := opts.layout
	if name == "" {
		name = m.Layout
	}
	if name == "" {
		name = "static"
	}
	routes := opts.routes
	if routes == "" {
		routes = m.Routes
	}
	return name, pathmap.RouteStrategy(routes)
}
