package planner

import (
	"fmt"
	"sort"

	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/diffview"
	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/domain"
	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/patchblock"
	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/pathmap"
)

// Options tunes planning output
type Options struct {
	// MaxDiffBytes bounds each rendered preview; zero uses diffview.DefaultMaxBytes
	MaxDiffBytes int
}

// BlockError reports a page whose blocks could not be merged
type BlockError struct {
	URL             string `json:"url"`
	DestinationPath string `json:"destination_path,omitempty"`
	Message         string `json:"message"`
	Err             error  `json:"-"`
}

func (e BlockError) Error() string {
	return fmt.Sprintf("%s: %s", e.URL, e.Message)
}

func (e BlockError) Unwrap() error {
	return e.Err
}

// Result is a complete plan: one change and one preview per mapped page, ordered by destination path.
type Result struct {
	PlannedChanges []domain.PlannedFileChange `json:"planned_changes"`
	DiffPreviews   []domain.DiffPreview       `json:"diff_previews"`
	PathErrors     []pathmap.Failure          `json:"path_errors"`
	BlockErrors    []BlockError               `json:"block_errors"`
}

// PlanChanges resolves every target page, merges its blocks into the existing file content (keyed
// by destination path) and renders a preview. Per-page failures are collected, only an invalid
// layout fails the whole call. Pages without blocks produce nothing.
func PlanChanges(targets []domain.TargetPage, layout pathmap.Layout, existing map[string]string, opts Options) (Result, error) {
	maxDiff := opts.MaxDiffBytes
	if maxDiff == 0 {
		maxDiff = diffview.DefaultMaxBytes
	}

	res := Result{
		PlannedChanges: make([]domain.PlannedFileChange, 0, len(targets)),
		DiffPreviews:   make([]domain.DiffPreview, 0, len(targets)),
		BlockErrors:    make([]BlockError, 0),
	}

	pages, urls, dups := indexTargets(targets)
	res.BlockErrors = append(res.BlockErrors, dups...)

	batch, err := pathmap.ResolveBatch(urls, layout)
	if err != nil {
		return Result{}, err
	}
	res.PathErrors = batch.Failures

	mappings := batch.Mappings
	sort.Slice(mappings, func(i, j int) bool {
		return mappings[i].DestinationPath < mappings[j].DestinationPath
	})

	for _, m := range mappings {
		page := pages[m.SourceURL]
		change, err := planPage(page, m, existing)
		if err != nil {
			res.BlockErrors = append(res.BlockErrors, BlockError{
				URL:             page.URL,
				DestinationPath: m.DestinationPath,
				Message:         err.Error(),
				Err:             err,
			})
			continue
		}
		res.PlannedChanges = append(res.PlannedChanges, change)
		res.DiffPreviews = append(res.DiffPreviews, diffview.Preview(change, maxDiff))
	}

	sort.SliceStable(res.BlockErrors, func(i, j int) bool {
		return res.BlockErrors[i].URL < res.BlockErrors[j].URL
	})
	return res, nil
}

func planPage(page domain.TargetPage, m domain.PathMapping, existing map[string]string) (domain.PlannedFileChange, error) {
	var previous *string
	if content, ok := existing[m.DestinationPath]; ok {
		previous = &content
	}

	merged, err := patchblock.ApplyBlocks(previous, page.Blocks)
	if err != nil {
		return domain.PlannedFileChange{}, err
	}

	action := domain.ActionUpdate
	switch {
	case previous == nil:
		action = domain.ActionCreate
	case *previous == merged.Content:
		action = domain.ActionNoOp
	}

	notes := make([]string, 0, len(page.Notes)+len(merged.Notes)+1)
	notes = append(notes, page.Notes...)
	notes = append(notes, merged.Notes...)
	if action == domain.ActionCreate {
		notes = append(notes, fmt.Sprintf("creates new file %s from the default template", m.DestinationPath))
	}
	if len(notes) == 0 {
		notes = nil
	}

	return domain.PlannedFileChange{
		SourceURL:           page.URL,
		DestinationPath:     m.DestinationPath,
		Action:              action,
		PreviousContent:     previous,
		MergedContent:       merged.Content,
		RequiresHumanReview: merged.RequiresHumanReview,
		ReviewNotes:         notes,
	}, nil
}

// indexTargets keys pages by URL. The first page for a URL wins, later ones are reported.
func indexTargets(targets []domain.TargetPage) (map[string]domain.TargetPage, []string, []BlockError) {
	pages := make(map[string]domain.TargetPage, len(targets))
	urls := make([]string, 0, len(targets))
	var dups []BlockError

	for _, t := range targets {
		if len(t.Blocks) == 0 {
			continue
		}
		if _, seen := pages[t.URL]; seen {
			dups = append(dups, BlockError{URL: t.URL, Message: "duplicate target page"})
			continue
		}
		pages[t.URL] = t
		urls = append(urls, t.URL)
	}
	return pages, urls, dups
}

// DestinationPaths returns the sorted, distinct destination paths the targets map to. URLs that
// fail to resolve are left out; PlanChanges reports them.
func DestinationPaths(targets []domain.TargetPage, layout pathmap.Layout) ([]string, error) {
	_, urls, _ := indexTargets(targets)
	batch, err := pathmap.ResolveBatch(urls, layout)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(batch.Mappings))
	for _, m := range batch.Mappings {
		paths = append(paths, m.DestinationPath)
	}
	sort.Strings(paths)
	return paths, nil
}
