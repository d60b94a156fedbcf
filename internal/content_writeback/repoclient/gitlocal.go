package repoclient

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/domain"
)

// ErrRevisionMismatch means the file changed since the revision the caller planned against
var ErrRevisionMismatch = errors.New("file revision does not match")

// LocalConfig configures commits made into local worktrees
type LocalConfig struct {
	// Root, when set, is the only directory local destinations may live under
	Root        string
	AuthorName  string
	AuthorEmail string
}

// LocalGitClient commits files into a non-bare git worktree on disk, one commit per file.
type LocalGitClient struct {
	root   string
	branch string
	repo   *git.Repository
	author object.Signature
	now    func() time.Time
	remove func(string) error
}

// OpenLocal opens the worktree named by dest.LocalPath
func OpenLocal(cfg LocalConfig, dest domain.DestinationRepository) (*LocalGitClient, error) {
	root, err := filepath.Abs(dest.LocalPath)
	if err != nil {
		return nil, &domain.RepositoryError{Op: "open", Err: err}
	}
	if cfg.Root != "" {
		allowed, err := filepath.Abs(cfg.Root)
		if err != nil {
			return nil, &domain.RepositoryError{Op: "open", Err: err}
		}
		if !within(allowed, root) {
			return nil, &domain.RepositoryError{Op: "open", Err: fmt.Errorf("%w: %s is outside %s", domain.ErrWriteAccessDenied, root, allowed)}
		}
	}

	repo, err := git.PlainOpen(root)
	if err != nil {
		return nil, &domain.RepositoryError{Op: "open", Err: fmt.Errorf("%w: %v", domain.ErrRepositoryUnavailable, err)}
	}

	name, email := cfg.AuthorName, cfg.AuthorEmail
	if name == "" {
		name = "content-writeback"
	}
	if email == "" {
		email = "writeback@localhost"
	}

	return &LocalGitClient{
		root:   root,
		branch: dest.Branch,
		repo:   repo,
		author: object.Signature{Name: name, Email: email},
		now:    time.Now,
		remove: os.Remove,
	}, nil
}

// GetFile reads path from the worktree. The revision is the git blob hash of the content.
func (c *LocalGitClient) GetFile(_ context.Context, path string) (*domain.RepositoryFile, error) {
	full, err := c.resolve(path)
	if err != nil {
		return nil, &domain.RepositoryError{Op: "get", Path: path, Err: err}
	}

	data, err := os.ReadFile(full)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.RepositoryError{Op: "get", Path: path, Err: err}
	}
	return &domain.RepositoryFile{Content: string(data), Revision: blobHash(data)}, nil
}

// UpsertFile writes content to path, stages it and commits. A non-empty prevRevision must match
// the file currently on disk; an empty one requires that the file does not exist.
func (c *LocalGitClient) UpsertFile(ctx context.Context, path, content, message, prevRevision string) (domain.Commit, error) {
	full, err := c.resolve(path)
	if err != nil {
		return domain.Commit{}, &domain.RepositoryError{Op: "upsert", Path: path, Err: err}
	}

	current, err := c.GetFile(ctx, path)
	if err != nil {
		return domain.Commit{}, err
	}
	switch {
	case current == nil && prevRevision != "":
		return domain.Commit{}, &domain.RepositoryError{Op: "upsert", Path: path, Err: fmt.Errorf("%w: file was removed", ErrRevisionMismatch)}
	case current != nil && current.Revision != prevRevision:
		return domain.Commit{}, &domain.RepositoryError{Op: "upsert", Path: path, Err: fmt.Errorf("%w: have %s, want %s", ErrRevisionMismatch, current.Revision, prevRevision)}
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return domain.Commit{}, &domain.RepositoryError{Op: "upsert", Path: path, Err: err}
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return domain.Commit{}, &domain.RepositoryError{Op: "upsert", Path: path, Err: err}
	}

	wt, err := c.repo.Worktree()
	if err != nil {
		return domain.Commit{}, &domain.RepositoryError{Op: "upsert", Path: path, Err: err}
	}
	if _, err := wt.Add(filepath.ToSlash(path)); err != nil {
		return domain.Commit{}, &domain.RepositoryError{Op: "upsert", Path: path, Err: fmt.Errorf("staging: %w", err)}
	}

	author := c.author
	author.When = c.now()
	hash, err := wt.Commit(message, &git.CommitOptions{Author: &author})
	if errors.Is(err, git.ErrEmptyCommit) {
		// content already committed, report the current head
		head, herr := c.repo.Head()
		if herr != nil {
			return domain.Commit{}, &domain.RepositoryError{Op: "upsert", Path: path, Err: herr}
		}
		return domain.Commit{ID: head.Hash().String(), Path: path}, nil
	}
	if err != nil {
		return domain.Commit{}, &domain.RepositoryError{Op: "upsert", Path: path, Err: fmt.Errorf("committing: %w", err)}
	}
	return domain.Commit{ID: hash.String(), Path: path}, nil
}

// VerifyWriteAccess checks that the worktree is writable and on the expected branch
func (c *LocalGitClient) VerifyWriteAccess(_ context.Context) error {
	if _, err := c.repo.Worktree(); err != nil {
		return &domain.RepositoryError{Op: "verify", Err: fmt.Errorf("%w: %v", domain.ErrWriteAccessDenied, err)}
	}

	if c.branch != "" {
		head, err := c.repo.Head()
		if err != nil && !errors.Is(err, plumbing.ErrReferenceNotFound) {
			return &domain.RepositoryError{Op: "verify", Err: err}
		}
		if err == nil && head.Name() != plumbing.NewBranchReferenceName(c.branch) {
			return &domain.RepositoryError{Op: "verify", Err: fmt.Errorf("%w: checked out %s, want %s", domain.ErrWriteAccessDenied, head.Name().Short(), c.branch)}
		}
	}

	tmp, err := os.CreateTemp(c.root, ".writeback-check-*")
	if err != nil {
		return &domain.RepositoryError{Op: "verify", Err: fmt.Errorf("%w: %v", domain.ErrWriteAccessDenied, err)}
	}
	name := tmp.Name()
	tmp.Close()
	if err := c.remove(name); err != nil {
		return &domain.RepositoryError{Op: "verify", Err: fmt.Errorf("removing %s: %w", filepath.Base(name), err)}
	}
	return nil
}

func (c *LocalGitClient) resolve(path string) (string, error) {
	full := filepath.Join(c.root, filepath.FromSlash(path))
	if !within(c.root, full) || full == c.root {
		return "", fmt.Errorf("path %q escapes the worktree", path)
	}
	if rel, _ := filepath.Rel(c.root, full); strings.HasPrefix(filepath.ToSlash(rel), ".git/") || rel == ".git" {
		return "", fmt.Errorf("path %q is inside the git directory", path)
	}
	return full, nil
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func blobHash(data []byte) string {
	return plumbing.ComputeHash(plumbing.BlobObject, data).String()
}
