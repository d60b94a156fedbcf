package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/diffview"
	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/domain"
	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/repoclient"
	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/repository"
	"github.com/GoSim-25-26J-441/content-writeback/internal/logging"
	"github.com/GoSim-25-26J-441/content-writeback/internal/metrics"
)

const (
	DefaultSessionTTL = 24 * time.Hour
	// DefaultStoreGrace keeps expired records readable so they report "expired" instead of "not found"
	DefaultStoreGrace = time.Hour
	// DefaultAppliedRetention is the minimum store expiry of an applied record, so a late retry
	// still gets the recorded commit ids
	DefaultAppliedRetention = 7 * 24 * time.Hour
)

var (
	ErrInvalidRequest     = errors.New("invalid session request")
	ErrListingUnsupported = errors.New("session store does not support listing")
	ErrLedgerDisabled     = errors.New("apply ledger is not configured")
)

// SessionStore persists whole session records with a store-level expiry
type SessionStore interface {
	Get(ctx context.Context, id string) (*domain.ReviewSession, error)
	Put(ctx context.Context, session *domain.ReviewSession, ttl time.Duration) error
}

// SessionLister is implemented by stores that index sessions per site
type SessionLister interface {
	ListBySite(ctx context.Context, siteURL string) ([]string, error)
}

// RepositoryOpener returns a client for a session's destination repository
type RepositoryOpener interface {
	Open(ctx context.Context, dest domain.DestinationRepository) (repoclient.Client, error)
}

// ApplyLedger durably records applied sessions
type ApplyLedger interface {
	Record(ctx context.Context, session *domain.ReviewSession) error
	ListBySite(ctx context.Context, siteURL string, limit int) ([]repository.LedgerEntry, error)
}

// ReviewService drives the review session lifecycle: pending -> approved -> applied, with expiry.
// Transitions are read-modify-write on the store without compare-and-swap; two concurrent applies
// of one session may both write, which the skip-if-already-merged check keeps harmless.
type ReviewService struct {
	store      SessionStore
	repos      RepositoryOpener
	ledger     ApplyLedger
	metrics    *metrics.Metrics
	log        zerolog.Logger
	validate   *validator.Validate
	now        func() time.Time
	newID      func() string
	defaultTTL time.Duration
	storeGrace time.Duration
	retention  time.Duration
}

// Option configures a ReviewService
type Option func(*ReviewService)

func WithClock(now func() time.Time) Option {
	return func(s *ReviewService) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *ReviewService) { s.newID = newID }
}

func WithLedger(l ApplyLedger) Option {
	return func(s *ReviewService) { s.ledger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *ReviewService) { s.metrics = m }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *ReviewService) { s.log = l }
}

func WithDefaultTTL(ttl time.Duration) Option {
	return func(s *ReviewService) {
		if ttl > 0 {
			s.defaultTTL = ttl
		}
	}
}

func WithStoreGrace(grace time.Duration) Option {
	return func(s *ReviewService) {
		if grace > 0 {
			s.storeGrace = grace
		}
	}
}

func WithAppliedRetention(d time.Duration) Option {
	return func(s *ReviewService) {
		if d > 0 {
			s.retention = d
		}
	}
}

// NewReviewService creates a new ReviewService
func NewReviewService(store SessionStore, repos RepositoryOpener, opts ...Option) *ReviewService {
	s := &ReviewService{
		store:      store,
		repos:      repos,
		log:        logging.Component("review"),
		validate:   validator.New(),
		now:        time.Now,
		newID:      uuid.NewString,
		defaultTTL: DefaultSessionTTL,
		storeGrace: DefaultStoreGrace,
		retention:  DefaultAppliedRetention,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create persists a new pending session. Missing previews are rendered from the changes.
func (s *ReviewService) Create(ctx context.Context, req *domain.CreateSessionRequest) (*domain.ReviewSession, error) {
	if err := s.checkCreate(req); err != nil {
		return nil, err
	}

	ttl := req.TTL
	if ttl == 0 {
		ttl = s.defaultTTL
	}

	previews := req.DiffPreviews
	if len(previews) == 0 {
		previews = make([]domain.DiffPreview, 0, len(req.PlannedChanges))
		for _, c := range req.PlannedChanges {
			previews = append(previews, diffview.Preview(c, diffview.DefaultMaxBytes))
		}
	}

	now := s.now()
	session := &domain.ReviewSession{
		ID:                    s.newID(),
		CreatedAt:             now,
		ExpiresAt:             now.Add(ttl),
		Status:                domain.StatusPending,
		SiteURL:               req.SiteURL,
		SelectedTargetPaths:   append([]string{}, req.TargetPaths...),
		PlannedChanges:        append([]domain.PlannedFileChange{}, req.PlannedChanges...),
		DiffPreviews:          previews,
		DestinationRepository: req.Destination,
	}

	ctx = withSession(ctx, session.ID)
	if err := s.put(ctx, session); err != nil {
		return nil, err
	}
	s.metrics.Transition("", string(domain.StatusPending))

	log := opLogger(ctx, s.log, "create")
	log.Info().
		Int("changes", len(session.PlannedChanges)).
		Str("destination", session.DestinationRepository.String()).
		Time("expires_at", session.ExpiresAt).
		Msg("review session created")

	return session, nil
}

func (s *ReviewService) checkCreate(req *domain.CreateSessionRequest) error {
	if req == nil {
		return fmt.Errorf("%w: empty request", ErrInvalidRequest)
	}
	if req.TTL < 0 {
		return fmt.Errorf("%w: negative ttl", ErrInvalidRequest)
	}
	if err := s.validate.Struct(req.Destination); err != nil {
		return fmt.Errorf("%w: destination: %v", ErrInvalidRequest, err)
	}
	if len(req.PlannedChanges) == 0 {
		return fmt.Errorf("%w: no planned changes", ErrInvalidRequest)
	}

	seen := make(map[string]bool, len(req.PlannedChanges))
	for _, c := range req.PlannedChanges {
		if c.DestinationPath == "" {
			return fmt.Errorf("%w: change for %s has no destination path", ErrInvalidRequest, c.SourceURL)
		}
		if seen[c.DestinationPath] {
			return fmt.Errorf("%w: duplicate destination path %s", ErrInvalidRequest, c.DestinationPath)
		}
		seen[c.DestinationPath] = true

		if want := actionFor(c); c.Action != want {
			return fmt.Errorf("%w: %s is marked %s but its content says %s", ErrInvalidRequest, c.DestinationPath, c.Action, want)
		}
	}
	return nil
}

func actionFor(c domain.PlannedFileChange) domain.ChangeAction {
	switch {
	case c.PreviousContent == nil:
		return domain.ActionCreate
	case *c.PreviousContent == c.MergedContent:
		return domain.ActionNoOp
	default:
		return domain.ActionUpdate
	}
}

// Get returns the session, first moving it to expired if its time has passed.
func (s *ReviewService) Get(ctx context.Context, id string) (*domain.ReviewSession, error) {
	return s.load(withSession(ctx, id), id)
}

// ListSessions returns the ids of the stored sessions for a site
func (s *ReviewService) ListSessions(ctx context.Context, siteURL string) ([]string, error) {
	lister, ok := s.store.(SessionLister)
	if !ok {
		return nil, ErrListingUnsupported
	}
	return lister.ListBySite(ctx, siteURL)
}

// AppliedHistory returns the ledger entries for a site, newest first
func (s *ReviewService) AppliedHistory(ctx context.Context, siteURL string, limit int) ([]repository.LedgerEntry, error) {
	if s.ledger == nil {
		return nil, ErrLedgerDisabled
	}
	return s.ledger.ListBySite(ctx, siteURL, limit)
}

// Approve moves a pending session to approved. Approving an approved session changes nothing.
func (s *ReviewService) Approve(ctx context.Context, id string) (domain.ApproveResult, error) {
	ctx = withSession(ctx, id)
	session, err := s.load(ctx, id)
	if err != nil {
		return domain.ApproveResult{}, err
	}

	prev := session.Status
	switch prev {
	case domain.StatusApproved:
		return domain.ApproveResult{PreviousStatus: prev, NewStatus: prev}, nil
	case domain.StatusExpired:
		return domain.ApproveResult{}, domain.ErrSessionExpired
	case domain.StatusApplied:
		return domain.ApproveResult{}, domain.ErrSessionAlreadyApplied
	}

	now := s.now()
	session.Status = domain.StatusApproved
	session.ApprovedAt = &now
	if err := s.put(ctx, session); err != nil {
		return domain.ApproveResult{}, err
	}
	s.metrics.Transition(string(prev), string(domain.StatusApproved))

	log := opLogger(ctx, s.log, "approve")
	log.Info().Msg("review session approved")

	return domain.ApproveResult{PreviousStatus: prev, NewStatus: domain.StatusApproved}, nil
}

// Apply writes every changed file of an approved session and marks it applied with the resulting
// commit ids. Applying an applied session returns the recorded ids without touching the repository.
//
// A file whose current content already equals the merged content is skipped, so an apply retried
// after a partial failure only writes what is missing. A file that differs from both the planned
// previous content and the merged content fails the call with a ContentDriftError.
func (s *ReviewService) Apply(ctx context.Context, id string) (domain.ApplyResult, error) {
	ctx = withSession(ctx, id)
	started := time.Now()
	log := opLogger(ctx, s.log, "apply")

	session, err := s.load(ctx, id)
	if err != nil {
		return domain.ApplyResult{}, err
	}

	switch session.Status {
	case domain.StatusApplied:
		return domain.ApplyResult{
			Applied:        true,
			AlreadyApplied: true,
			CommitIDs:      append([]string{}, session.ResultingCommitIDs...),
			Files:          session.AppliedFiles,
		}, nil
	case domain.StatusExpired:
		return domain.ApplyResult{}, domain.ErrSessionExpired
	case domain.StatusApproved:
	default:
		return domain.ApplyResult{}, domain.ErrSessionNotApproved
	}

	commitIDs, files, err := s.write(ctx, session)
	if err != nil {
		s.metrics.ObserveApply("failed", time.Since(started))
		log.Warn().Err(err).Strs("commit_ids", commitIDs).Msg("apply failed, session left approved")
		s.keepPartial(ctx, session, commitIDs, files)
		return domain.ApplyResult{}, err
	}

	now := s.now()
	session.Status = domain.StatusApplied
	session.ResultingCommitIDs = commitIDs
	session.AppliedFiles = files
	session.AppliedAt = &now
	if err := s.put(ctx, session); err != nil {
		s.metrics.ObserveApply("failed", time.Since(started))
		log.Error().Err(err).Strs("commit_ids", commitIDs).Msg("files written but session not marked applied")
		return domain.ApplyResult{}, err
	}
	s.metrics.Transition(string(domain.StatusApproved), string(domain.StatusApplied))
	s.metrics.ObserveApply("applied", time.Since(started))

	if s.ledger != nil {
		if err := s.ledger.Record(ctx, session); err != nil {
			log.Warn().Err(err).Msg("failed to record apply in ledger")
		}
	}

	log.Info().Int("commits", len(commitIDs)).Int("files", len(files)).Msg("review session applied")
	return domain.ApplyResult{Applied: true, CommitIDs: commitIDs, Files: files}, nil
}

// keepPartial records the files a failed apply already wrote, leaving the status approved,
// so the retry reports their commit ids
func (s *ReviewService) keepPartial(ctx context.Context, session *domain.ReviewSession, commitIDs []string, files []domain.AppliedFile) {
	if len(commitIDs) == 0 {
		return
	}
	session.AppliedFiles = files
	if err := s.put(ctx, session); err != nil {
		log := opLogger(ctx, s.log, "apply")
		log.Error().Err(err).Strs("commit_ids", commitIDs).Msg("failed to record partially applied files")
	}
}

// write performs the external writes in destination path order. On error it still returns the
// files handled before the failure.
func (s *ReviewService) write(ctx context.Context, session *domain.ReviewSession) ([]string, []domain.AppliedFile, error) {
	provider := session.DestinationRepository.Provider

	client, err := s.repos.Open(ctx, session.DestinationRepository)
	if err != nil {
		return nil, nil, err
	}
	if err := client.VerifyWriteAccess(ctx); err != nil {
		return nil, nil, err
	}

	changes := append([]domain.PlannedFileChange{}, session.PlannedChanges...)
	sort.Slice(changes, func(i, j int) bool {
		return changes[i].DestinationPath < changes[j].DestinationPath
	})

	// commits from an earlier failed attempt
	prior := make(map[string]string, len(session.AppliedFiles))
	for _, f := range session.AppliedFiles {
		if f.CommitID != "" {
			prior[f.Path] = f.CommitID
		}
	}

	commitIDs := make([]string, 0, len(changes))
	files := make([]domain.AppliedFile, 0, len(changes))

	for _, c := range changes {
		if c.Action == domain.ActionNoOp {
			continue
		}

		current, err := client.GetFile(ctx, c.DestinationPath)
		if err != nil {
			s.metrics.FileWrite(provider, "failed")
			return commitIDs, files, err
		}

		if current != nil && current.Content == c.MergedContent {
			s.metrics.FileWrite(provider, "skipped")
			if id, ok := prior[c.DestinationPath]; ok {
				commitIDs = append(commitIDs, id)
				files = append(files, domain.AppliedFile{Path: c.DestinationPath, CommitID: id})
				continue
			}
			files = append(files, domain.AppliedFile{Path: c.DestinationPath, Skipped: true})
			continue
		}
		if !matchesPrevious(current, c.PreviousContent) {
			s.metrics.FileWrite(provider, "drift")
			return commitIDs, files, &domain.ContentDriftError{Path: c.DestinationPath}
		}

		revision := ""
		if current != nil {
			revision = current.Revision
		}
		commit, err := client.UpsertFile(ctx, c.DestinationPath, c.MergedContent, commitMessage(session, c), revision)
		if err != nil {
			s.metrics.FileWrite(provider, "failed")
			return commitIDs, files, err
		}
		s.metrics.FileWrite(provider, "written")

		commitIDs = append(commitIDs, commit.ID)
		files = append(files, domain.AppliedFile{Path: c.DestinationPath, CommitID: commit.ID})
	}
	return commitIDs, files, nil
}

func matchesPrevious(current *domain.RepositoryFile, previous *string) bool {
	if current == nil || previous == nil {
		return current == nil && previous == nil
	}
	return current.Content == *previous
}

func commitMessage(session *domain.ReviewSession, c domain.PlannedFileChange) string {
	verb := "Update"
	if c.Action == domain.ActionCreate {
		verb = "Create"
	}
	return fmt.Sprintf("%s %s\n\nReview session: %s\nSource: %s", verb, c.DestinationPath, session.ID, c.SourceURL)
}

// load reads a session and persists the expired transition when its time has passed
func (s *ReviewService) load(ctx context.Context, id string) (*domain.ReviewSession, error) {
	session, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if session.Status.IsTerminal() || !session.ExpiredAt(s.now()) {
		return session, nil
	}

	prev := session.Status
	session.Status = domain.StatusExpired
	if err := s.put(ctx, session); err != nil {
		return nil, err
	}
	s.metrics.Transition(string(prev), string(domain.StatusExpired))

	log := opLogger(ctx, s.log, "expire")
	log.Info().Str("previous_status", string(prev)).Msg("review session expired")
	return session, nil
}

// put writes the session with an expiry of its remaining lifetime plus the grace window.
// Applied records are kept for at least the retention period.
func (s *ReviewService) put(ctx context.Context, session *domain.ReviewSession) error {
	remaining := session.ExpiresAt.Sub(s.now())
	if remaining < 0 {
		remaining = 0
	}
	ttl := remaining + s.storeGrace
	if session.Status == domain.StatusApplied && ttl < s.retention {
		ttl = s.retention
	}
	return s.store.Put(ctx, session, ttl)
}
