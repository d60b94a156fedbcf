package bootstrap

import (
	"database/sql"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	httpapi "github.com/GoSim-25-26J-441/content-writeback/internal/api/http"
	"github.com/GoSim-25-26J-441/content-writeback/internal/api/http/middleware"
	"github.com/GoSim-25-26J-441/content-writeback/internal/api/http/routes"
	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/service"
	"github.com/GoSim-25-26J-441/content-writeback/internal/metrics"
)

type RouterDeps struct {
	ServiceName    string
	Version        string
	AllowedOrigins []string
	Redis          *redis.Client
	Ledger         *sql.DB
	Registry       *prometheus.Registry
	Metrics        *metrics.Metrics
	Plans          *service.PlanService
	Reviews        *service.ReviewService
}

func BuildRouter(dep RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(cors.New(corsConfig(dep.AllowedOrigins)))
	r.Use(dep.Metrics.GinMiddleware())

	healthHandler := httpapi.NewHealthHandler(dep.ServiceName, dep.Version, dep.Redis, dep.Ledger)
	healthHandler.RegisterRoutes(r)

	if dep.Registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(dep.Registry, promhttp.HandlerOpts{Registry: dep.Registry})))
	}

	routes.RegisterV1(r, routes.V1Deps{
		Plans:   dep.Plans,
		Reviews: dep.Reviews,
	})

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowOrigins = nil
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	}
	return cfg
}
