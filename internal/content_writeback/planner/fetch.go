package planner

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/domain"
)

// DefaultFetchConcurrency is used when FetchExisting gets a non-positive limit
const DefaultFetchConcurrency = 4

// FileSource reads current file content from a destination repository
type FileSource interface {
	GetFile(ctx context.Context, path string) (*domain.RepositoryFile, error)
}

// FetchExisting reads the current content of paths with at most limit requests in flight.
// Missing files are absent from the returned map. The first read error cancels the rest.
func FetchExisting(ctx context.Context, src FileSource, paths []string, limit int) (map[string]string, error) {
	if limit <= 0 {
		limit = DefaultFetchConcurrency
	}

	var (
		mu       sync.Mutex
		existing = make(map[string]string, len(paths))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, p := range paths {
		g.Go(func() error {
			f, err := src.GetFile(gctx, p)
			if err != nil {
				return err
			}
			if f == nil {
				return nil
			}
			mu.Lock()
			existing[p] = f.Content
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return existing, nil
}
