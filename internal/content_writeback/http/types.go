package http

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/domain"
	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/pathmap"
	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/planner"
	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/service"
	"github.com/GoSim-25-26J-441/content-writeback/internal/logging"
)

// Handler handles HTTP requests for planning and review sessions
type Handler struct {
	plans   *service.PlanService
	reviews *service.ReviewService
	log     zerolog.Logger
}

// New creates a new Handler
func New(plans *service.PlanService, reviews *service.ReviewService) *Handler {
	return &Handler{
		plans:   plans,
		reviews: reviews,
		log:     logging.Component("http"),
	}
}

type planReq struct {
	Targets     []domain.TargetPage           `json:"targets" binding:"required,min=1"`
	Layout      string                        `json:"layout" binding:"required"`
	Routes      string                        `json:"routes" binding:"omitempty,oneof=nested flat"`
	Destination *domain.DestinationRepository `json:"destination_repository"`
	Existing    map[string]string             `json:"existing"`
}

type planResp struct {
	OK bool `json:"ok"`
	planner.Result
}

// createSessionReq carries either a finished plan or the targets to plan server side
type createSessionReq struct {
	SiteURL        string                     `json:"site_url" binding:"required"`
	TargetPaths    []string                   `json:"target_paths"`
	PlannedChanges []domain.PlannedFileChange `json:"planned_changes"`
	DiffPreviews   []domain.DiffPreview       `json:"diff_previews"`

	Targets  []domain.TargetPage `json:"targets"`
	Layout   string              `json:"layout"`
	Routes   string              `json:"routes" binding:"omitempty,oneof=nested flat"`
	Existing map[string]string   `json:"existing"`

	Destination domain.DestinationRepository `json:"destination_repository"`
	TTLMs       int64                        `json:"ttl_ms" binding:"gte=0"`
}

type createSessionResp struct {
	OK           bool                 `json:"ok"`
	SessionID    string               `json:"session_id"`
	Status       domain.SessionStatus `json:"status"`
	ExpiresAt    time.Time            `json:"expires_at"`
	DiffPreviews []domain.DiffPreview `json:"diff_previews"`
	PathErrors   []pathmap.Failure    `json:"path_errors,omitempty"`
	BlockErrors  []planner.BlockError `json:"block_errors,omitempty"`
}

type errorResp struct {
	OK    bool   `json:"ok"`
	Code  string `json:"code"`
	Error string `json:"error"`
	Path  string `json:"path,omitempty"`
}
