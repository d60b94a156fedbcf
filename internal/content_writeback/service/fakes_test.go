package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/domain"
	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/repoclient"
	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/repository"
)

type fakeRepo struct {
	mu        sync.Mutex
	files     map[string]string
	writes    []string
	failOnce  map[string]error
	verifyErr error
	seq       int
}

func newFakeRepo(files map[string]string) *fakeRepo {
	if files == nil {
		files = map[string]string{}
	}
	return &fakeRepo{files: files, failOnce: map[string]error{}}
}

func (f *fakeRepo) GetFile(_ context.Context, path string) (*domain.RepositoryFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.files[path]
	if !ok {
		return nil, nil
	}
	return &domain.RepositoryFile{Content: content, Revision: fmt.Sprintf("rev-%d", len(content))}, nil
}

func (f *fakeRepo) UpsertFile(_ context.Context, path, content, _, _ string) (domain.Commit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failOnce[path]; ok {
		delete(f.failOnce, path)
		return domain.Commit{}, err
	}
	f.seq++
	f.files[path] = content
	f.writes = append(f.writes, path)
	return domain.Commit{ID: fmt.Sprintf("commit-%d", f.seq), Path: path}, nil
}

func (f *fakeRepo) VerifyWriteAccess(context.Context) error {
	return f.verifyErr
}

func (f *fakeRepo) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

type fakeOpener struct {
	repo  *fakeRepo
	err   error
	opens int
}

func (o *fakeOpener) Open(context.Context, domain.DestinationRepository) (repoclient.Client, error) {
	o.opens++
	if o.err != nil {
		return nil, o.err
	}
	return o.repo, nil
}

type fakeLedger struct {
	recorded []string
	err      error
}

func (l *fakeLedger) Record(_ context.Context, s *domain.ReviewSession) error {
	l.recorded = append(l.recorded, s.ID)
	return l.err
}

func (l *fakeLedger) ListBySite(context.Context, string, int) ([]repository.LedgerEntry, error) {
	entries := make([]repository.LedgerEntry, 0, len(l.recorded))
	for _, id := range l.recorded {
		entries = append(entries, repository.LedgerEntry{SessionID: id})
	}
	return entries, nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	require.NoError(t, client.Ping(context.Background()).Err())

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

type harness struct {
	svc    *ReviewService
	repo   *fakeRepo
	opener *fakeOpener
	clock  *clock
	mr     *miniredis.Miniredis
	store  *repository.SessionRepository
}

func newHarness(t *testing.T, files map[string]string, opts ...Option) *harness {
	t.Helper()
	client, mr := setupTestRedis(t)
	store := repository.NewSessionRepository(client)
	repo := newFakeRepo(files)
	opener := &fakeOpener{repo: repo}
	clk := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	ids := 0
	base := []Option{
		WithClock(clk.Now),
		WithLogger(zerolog.Nop()),
		WithIDGenerator(func() string {
			ids++
			return fmt.Sprintf("sess-%d", ids)
		}),
	}
	svc := NewReviewService(store, opener, append(base, opts...)...)
	return &harness{svc: svc, repo: repo, opener: opener, clock: clk, mr: mr, store: store}
}

func strPtr(s string) *string { return &s }

// twoChanges returns an update of b.html, a creation of a.html and a no-op on c.html
func twoChanges() (map[string]string, []domain.PlannedFileChange) {
	files := map[string]string{
		"b.html": "<main>\n</main>\n",
		"c.html": "same\n",
	}
	changes := []domain.PlannedFileChange{
		{
			SourceURL:       "https://x.test/b",
			DestinationPath: "b.html",
			Action:          domain.ActionUpdate,
			PreviousContent: strPtr("<main>\n</main>\n"),
			MergedContent:   "<main>\n<p>b</p>\n</main>\n",
		},
		{
			SourceURL:       "https://x.test/a",
			DestinationPath: "a.html",
			Action:          domain.ActionCreate,
			MergedContent:   "<main>\n<p>a</p>\n</main>\n",
		},
		{
			SourceURL:       "https://x.test/c",
			DestinationPath: "c.html",
			Action:          domain.ActionNoOp,
			PreviousContent: strPtr("same\n"),
			MergedContent:   "same\n",
		},
	}
	return files, changes
}

func createRequest(changes []domain.PlannedFileChange, ttl time.Duration) *domain.CreateSessionRequest {
	return &domain.CreateSessionRequest{
		SiteURL:        "https://x.test",
		TargetPaths:    []string{"/a", "/b", "/c"},
		PlannedChanges: changes,
		Destination:    domain.DestinationRepository{Provider: domain.ProviderGitHub, Owner: "acme", Name: "site"},
		TTL:            ttl,
	}
}
