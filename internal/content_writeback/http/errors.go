package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/domain"
	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/pathmap"
	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/service"
)

// writeError maps service errors onto status codes. Anything unrecognised is a 500 and is logged.
func (h *Handler) writeError(c *gin.Context, err error) {
	status, code := classify(err)
	resp := errorResp{Code: code, Error: err.Error()}

	var drift *domain.ContentDriftError
	if errors.As(err, &drift) {
		resp.Path = drift.Path
	}

	if status >= http.StatusInternalServerError {
		h.log.Error().Ctx(c.Request.Context()).Err(err).Str("route", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, resp)
}

func classify(err error) (int, string) {
	var drift *domain.ContentDriftError
	var repoErr *domain.RepositoryError

	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, domain.ErrSessionExpired):
		return http.StatusGone, "session_expired"
	case errors.Is(err, domain.ErrSessionAlreadyApplied):
		return http.StatusConflict, "session_already_applied"
	case errors.Is(err, domain.ErrSessionNotApproved):
		return http.StatusConflict, "session_not_approved"
	case errors.As(err, &drift):
		return http.StatusConflict, "content_drift"
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, pathmap.ErrInvalidLayout):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, service.ErrListingUnsupported), errors.Is(err, service.ErrLedgerDisabled):
		return http.StatusNotImplemented, "not_supported"
	case errors.As(err, &repoErr):
		if errors.Is(err, domain.ErrWriteAccessDenied) {
			return http.StatusBadGateway, "write_access_denied"
		}
		return http.StatusBadGateway, "repository_error"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, errorResp{Code: "invalid_request", Error: msg})
}
