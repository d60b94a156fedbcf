package bootstrap

import (
	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/pathmap"
	"github.com/GoSim-25-26J-441/content-writeback/internal/logging"
)

// LoadLayouts returns the built-in layout presets plus any declared in file
func LoadLayouts(file string) (pathmap.LayoutSet, error) {
	set, err := pathmap.LoadLayouts(file)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	log := logging.Component("bootstrap")
	log.Info().Str("file", file).Strs("layouts", names).Msg("layouts loaded")
	return set, nil
}
