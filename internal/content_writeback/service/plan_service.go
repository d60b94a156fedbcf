package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/domain"
	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/pathmap"
	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/planner"
	"github.com/GoSim-25-26J-441/content-writeback/internal/logging"
	"github.com/GoSim-25-26J-441/content-writeback/internal/metrics"
)

// PlanRequest selects the pages to plan and where their current content comes from.
// Existing wins over Destination; with neither, every page is planned as a new file.
type PlanRequest struct {
	Targets     []domain.TargetPage
	Layout      string
	Routes      pathmap.RouteStrategy
	Destination *domain.DestinationRepository
	Existing    map[string]string
}

// PlanService turns target pages into planned changes, reading existing files when asked to.
type PlanService struct {
	layouts     pathmap.LayoutSet
	repos       RepositoryOpener
	concurrency int
	maxDiff     int
	metrics     *metrics.Metrics
	log         zerolog.Logger
}

// NewPlanService creates a new PlanService
func NewPlanService(layouts pathmap.LayoutSet, repos RepositoryOpener, concurrency, maxDiff int, m *metrics.Metrics) *PlanService {
	return &PlanService{
		layouts:     layouts,
		repos:       repos,
		concurrency: concurrency,
		maxDiff:     maxDiff,
		metrics:     m,
		log:         logging.Component("plan"),
	}
}

// Plan resolves the layout, loads existing content and runs the planner
func (p *PlanService) Plan(ctx context.Context, req *PlanRequest) (planner.Result, error) {
	layout, err := p.layouts.Lookup(req.Layout, req.Routes)
	if err != nil {
		return planner.Result{}, err
	}

	existing := req.Existing
	if existing == nil && req.Destination != nil {
		existing, err = p.fetch(ctx, req.Targets, layout, *req.Destination)
		if err != nil {
			return planner.Result{}, err
		}
	}

	res, err := planner.PlanChanges(req.Targets, layout, existing, planner.Options{MaxDiffBytes: p.maxDiff})
	if err != nil {
		return planner.Result{}, err
	}

	for _, c := range res.PlannedChanges {
		p.metrics.PlannedChange(string(c.Action))
	}
	p.metrics.PlanError("path", len(res.PathErrors))
	p.metrics.PlanError("block", len(res.BlockErrors))

	log := opLogger(ctx, p.log, "plan")
	log.Info().
		Int("targets", len(req.Targets)).
		Int("changes", len(res.PlannedChanges)).
		Int("path_errors", len(res.PathErrors)).
		Int("block_errors", len(res.BlockErrors)).
		Msg("plan computed")

	return res, nil
}

func (p *PlanService) fetch(ctx context.Context, targets []domain.TargetPage, layout pathmap.Layout, dest domain.DestinationRepository) (map[string]string, error) {
	paths, err := planner.DestinationPaths(targets, layout)
	if err != nil {
		return nil, err
	}

	client, err := p.repos.Open(ctx, dest)
	if err != nil {
		return nil, err
	}

	existing, err := planner.FetchExisting(ctx, client, paths, p.concurrency)
	if err != nil {
		return nil, fmt.Errorf("reading existing content: %w", err)
	}
	return existing, nil
}
