package domain

import (
	"fmt"
	"time"
)

// BlockKind names a marker-delimited region that the engine owns inside a page.
type BlockKind string

const (
	BlockMeta          BlockKind = "meta"
	BlockAnswerCapsule BlockKind = "answer-capsule"
	BlockFAQ           BlockKind = "faq"
	BlockSchema        BlockKind = "schema"
)

// BlockOrder is the fixed order in which blocks are applied to a page.
var BlockOrder = []BlockKind{BlockMeta, BlockAnswerCapsule, BlockFAQ, BlockSchema}

// Valid reports whether k is one of the known block kinds.
func (k BlockKind) Valid() bool {
	for _, known := range BlockOrder {
		if k == known {
			return true
		}
	}
	return false
}

// ContentBlock is one rendered block of suggested content for a page
type ContentBlock struct {
	Kind BlockKind `json:"kind" validate:"required"`
	Text string    `json:"text"`
}

// TargetPage carries the upstream suggestions for a single page
type TargetPage struct {
	URL    string         `json:"url" validate:"required"`
	Blocks []ContentBlock `json:"blocks" validate:"dive"`
	Notes  []string       `json:"notes,omitempty"` // priority notes from the scorer, passed through to reviewers
}

// PathMapping is the resolved repository location of a URL
type PathMapping struct {
	SourceURL       string `json:"source_url"`
	NormalizedPath  string `json:"normalized_path"`
	DestinationPath string `json:"destination_path"`
	FileKind        string `json:"file_kind"`
	IsIndexFile     bool   `json:"is_index_file"`
}

// ChangeAction describes what applying a planned change does to the destination file
type ChangeAction string

const (
	ActionCreate ChangeAction = "create"
	ActionUpdate ChangeAction = "update"
	ActionNoOp   ChangeAction = "no-op"
)

// PlannedFileChange is the exact file-level result of merging a page's blocks.
// Action is ActionNoOp iff PreviousContent equals MergedContent byte-for-byte.
type PlannedFileChange struct {
	SourceURL           string       `json:"source_url"`
	DestinationPath     string       `json:"destination_path"`
	Action              ChangeAction `json:"action"`
	PreviousContent     *string      `json:"previous_content,omitempty"`
	MergedContent       string       `json:"merged_content,omitempty"`
	RequiresHumanReview bool         `json:"requires_human_review"`
	ReviewNotes         []string     `json:"review_notes,omitempty"`
}

// DiffPreview is the rendered review diff for one planned change
type DiffPreview struct {
	DestinationPath string       `json:"destination_path"`
	Action          ChangeAction `json:"action"`
	RenderedDiff    string       `json:"rendered_diff"`
	WasTruncated    bool         `json:"was_truncated"`
	LinesAdded      int          `json:"lines_added"`
	LinesRemoved    int          `json:"lines_removed"`
}

// Repository providers
const (
	ProviderGitHub = "github"
	ProviderLocal  = "local"
)

// DestinationRepository references the repository a session writes into.
// A session never owns the repository, it only names it.
type DestinationRepository struct {
	Provider  string `json:"provider" validate:"required,oneof=github local"`
	Owner     string `json:"owner,omitempty" validate:"required_if=Provider github"`
	Name      string `json:"name,omitempty" validate:"required_if=Provider github"`
	Branch    string `json:"branch,omitempty"`
	LocalPath string `json:"local_path,omitempty" validate:"required_if=Provider local"`
}

func (r DestinationRepository) String() string {
	switch r.Provider {
	case ProviderLocal:
		return fmt.Sprintf("local:%s", r.LocalPath)
	default:
		if r.Branch != "" {
			return fmt.Sprintf("%s:%s/%s@%s", r.Provider, r.Owner, r.Name, r.Branch)
		}
		return fmt.Sprintf("%s:%s/%s", r.Provider, r.Owner, r.Name)
	}
}

// SessionStatus is the lifecycle state of a review session
type SessionStatus string

const (
	StatusPending  SessionStatus = "pending"
	StatusApproved SessionStatus = "approved"
	StatusApplied  SessionStatus = "applied"
	StatusExpired  SessionStatus = "expired"
)

// IsTerminal reports whether no further transition can leave this status
func (s SessionStatus) IsTerminal() bool {
	return s == StatusApplied || s == StatusExpired
}

// AppliedFile records the outcome of writing one file during apply
type AppliedFile struct {
	Path     string `json:"path"`
	CommitID string `json:"commit_id,omitempty"`
	Skipped  bool   `json:"skipped,omitempty"` // already matched merged content, nothing written
}

// ReviewSession is the persisted, time-bounded record of a plan awaiting approval
type ReviewSession struct {
	ID                    string                `json:"session_id"`
	CreatedAt             time.Time             `json:"created_at"`
	ExpiresAt             time.Time             `json:"expires_at"`
	Status                SessionStatus         `json:"status"`
	SiteURL               string                `json:"site_url"`
	SelectedTargetPaths   []string              `json:"selected_target_paths"`
	PlannedChanges        []PlannedFileChange   `json:"planned_changes"`
	DiffPreviews          []DiffPreview         `json:"diff_previews"`
	DestinationRepository DestinationRepository `json:"destination_repository"`
	ResultingCommitIDs    []string              `json:"resulting_commit_ids"` // non-nil exactly when applied
	AppliedFiles          []AppliedFile         `json:"applied_files,omitempty"`
	ApprovedAt            *time.Time            `json:"approved_at,omitempty"`
	AppliedAt             *time.Time            `json:"applied_at,omitempty"`
}

// ExpiredAt reports whether the session has passed its expiry at now
func (s *ReviewSession) ExpiredAt(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Snapshot returns a copy of the session. Raw file content is stripped unless includeContent is set.
func (s *ReviewSession) Snapshot(includeContent bool) *ReviewSession {
	cp := *s
	cp.SelectedTargetPaths = append([]string(nil), s.SelectedTargetPaths...)
	cp.DiffPreviews = append([]DiffPreview(nil), s.DiffPreviews...)
	cp.AppliedFiles = append([]AppliedFile(nil), s.AppliedFiles...)
	if s.ResultingCommitIDs != nil {
		cp.ResultingCommitIDs = append([]string{}, s.ResultingCommitIDs...)
	}

	cp.PlannedChanges = make([]PlannedFileChange, len(s.PlannedChanges))
	for i, c := range s.PlannedChanges {
		if !includeContent {
			c.PreviousContent = nil
			c.MergedContent = ""
		}
		c.ReviewNotes = append([]string(nil), c.ReviewNotes...)
		cp.PlannedChanges[i] = c
	}
	return &cp
}

// CreateSessionRequest represents data needed to create a review session
type CreateSessionRequest struct {
	SiteURL        string
	TargetPaths    []string
	PlannedChanges []PlannedFileChange
	DiffPreviews   []DiffPreview
	Destination    DestinationRepository
	TTL            time.Duration // zero means the service default
}

// ApproveResult reports the transition performed by an approval
type ApproveResult struct {
	PreviousStatus SessionStatus `json:"previous_status"`
	NewStatus      SessionStatus `json:"new_status"`
}

// ApplyResult reports the outcome of an apply call
type ApplyResult struct {
	Applied        bool          `json:"applied"`
	AlreadyApplied bool          `json:"already_applied"`
	CommitIDs      []string      `json:"commit_ids"`
	Files          []AppliedFile `json:"files,omitempty"`
}

// RepositoryFile is a file read from a destination repository
type RepositoryFile struct {
	Content  string
	Revision string
}

// Commit identifies the write produced by an upsert
type Commit struct {
	ID   string `json:"commit_id"`
	Path string `json:"path"`
}
