// Package repoclient talks to the repositories that approved changes are written into.
package repoclient

import (
	"context"
	"fmt"

	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/domain"
)

// Client reads and writes single files in a destination repository.
// GetFile returns nil, nil when the file does not exist.
type Client interface {
	GetFile(ctx context.Context, path string) (*domain.RepositoryFile, error)
	UpsertFile(ctx context.Context, path, content, message, prevRevision string) (domain.Commit, error)
	VerifyWriteAccess(ctx context.Context) error
}

// Factory opens a client for the repository a session names
type Factory struct {
	GitHub GitHubConfig
	Local  LocalConfig
}

// Open returns the client for dest.Provider
func (f *Factory) Open(ctx context.Context, dest domain.DestinationRepository) (Client, error) {
	switch dest.Provider {
	case domain.ProviderGitHub:
		return NewGitHubClient(ctx, f.GitHub, dest)
	case domain.ProviderLocal:
		return OpenLocal(f.Local, dest)
	default:
		return nil, &domain.RepositoryError{
			Op:  "open",
			Err: fmt.Errorf("%w: unknown provider %q", domain.ErrRepositoryUnavailable, dest.Provider),
		}
	}
}
