package routes

import (
	"github.com/gin-gonic/gin"

	wbhttp "github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/http"
	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/service"
)

type V1Deps struct {
	Plans   *service.PlanService
	Reviews *service.ReviewService
}

func RegisterV1(r *gin.Engine, dep V1Deps) {
	api := r.Group("/api/v1")

	writeback := api.Group("/writeback")
	wbhttp.New(dep.Plans, dep.Reviews).Register(writeback)
}
