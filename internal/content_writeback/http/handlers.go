package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/domain"
	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/pathmap"
	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/service"
	"github.com/GoSim-25-26J-441/content-writeback/internal/logging"
)

const defaultHistoryLimit = 50

// plan computes changes and previews without creating a session
func (h *Handler) plan(c *gin.Context) {
	var req planReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body: "+err.Error())
		return
	}

	res, err := h.plans.Plan(c.Request.Context(), &service.PlanRequest{
		Targets:     req.Targets,
		Layout:      req.Layout,
		Routes:      pathmap.RouteStrategy(req.Routes),
		Destination: req.Destination,
		Existing:    req.Existing,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, planResp{OK: true, Result: res})
}

func (h *Handler) createSession(c *gin.Context) {
	var req createSessionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	resp := createSessionResp{OK: true}

	changes, previews := req.PlannedChanges, req.DiffPreviews
	if len(changes) == 0 {
		if len(req.Targets) == 0 || strings.TrimSpace(req.Layout) == "" {
			badRequest(c, "either planned_changes or targets with a layout are required")
			return
		}

		dest := req.Destination
		res, err := h.plans.Plan(ctx, &service.PlanRequest{
			Targets:     req.Targets,
			Layout:      req.Layout,
			Routes:      pathmap.RouteStrategy(req.Routes),
			Destination: &dest,
			Existing:    req.Existing,
		})
		if err != nil {
			h.writeError(c, err)
			return
		}
		changes, previews = res.PlannedChanges, res.DiffPreviews
		resp.PathErrors, resp.BlockErrors = res.PathErrors, res.BlockErrors
	}

	targetPaths := req.TargetPaths
	if len(targetPaths) == 0 {
		for _, t := range req.Targets {
			if p, err := pathmap.NormalizePath(t.URL); err == nil {
				targetPaths = append(targetPaths, p)
			}
		}
	}

	session, err := h.reviews.Create(ctx, &domain.CreateSessionRequest{
		SiteURL:        req.SiteURL,
		TargetPaths:    targetPaths,
		PlannedChanges: changes,
		DiffPreviews:   previews,
		Destination:    req.Destination,
		TTL:            time.Duration(req.TTLMs) * time.Millisecond,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp.SessionID = session.ID
	resp.Status = session.Status
	resp.ExpiresAt = session.ExpiresAt
	resp.DiffPreviews = session.DiffPreviews
	c.JSON(http.StatusCreated, resp)
}

// getSession returns the session without raw file content unless include_content=true
func (h *Handler) getSession(c *gin.Context) {
	id := c.Param("id")
	includeContent, _ := strconv.ParseBool(c.DefaultQuery("include_content", "false"))

	ctx := logging.WithSessionID(c.Request.Context(), id)
	session, err := h.reviews.Get(ctx, id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "session": session.Snapshot(includeContent)})
}

func (h *Handler) listSessions(c *gin.Context) {
	site := strings.TrimSpace(c.Query("site_url"))
	if site == "" {
		badRequest(c, "site_url is required")
		return
	}

	ids, err := h.reviews.ListSessions(c.Request.Context(), site)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "session_ids": ids})
}

func (h *Handler) approveSession(c *gin.Context) {
	id := c.Param("id")
	res, err := h.reviews.Approve(logging.WithSessionID(c.Request.Context(), id), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "previous_status": res.PreviousStatus, "new_status": res.NewStatus})
}

func (h *Handler) applySession(c *gin.Context) {
	id := c.Param("id")
	res, err := h.reviews.Apply(logging.WithSessionID(c.Request.Context(), id), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":              true,
		"applied":         res.Applied,
		"already_applied": res.AlreadyApplied,
		"commit_ids":      res.CommitIDs,
		"files":           res.Files,
	})
}

func (h *Handler) listApplies(c *gin.Context) {
	site := strings.TrimSpace(c.Query("site_url"))
	if site == "" {
		badRequest(c, "site_url is required")
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := h.reviews.AppliedHistory(c.Request.Context(), site, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "applies": entries})
}
