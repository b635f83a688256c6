package routers

import (
	"log/slog"

	"github.com/GrainArc/GlebaMap/logger"
	"github.com/GrainArc/GlebaMap/metrics"
	"github.com/GrainArc/GlebaMap/views"
	"github.com/gin-gonic/gin"
)

func GlebaRouters(r *gin.Engine, ctrl *views.GlebaController) {
	r.GET("/", ctrl.Index)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	apiRouter := r.Group("/api")
	{
		apiRouter.GET("/glebas", ctrl.List)
		apiRouter.POST("/glebas", ctrl.Create)
		apiRouter.PUT("/glebas/:id", ctrl.Update)
		apiRouter.DELETE("/glebas/:id", ctrl.Delete)
		apiRouter.GET("/glebas/:id/history", ctrl.History)
		apiRouter.GET("/sessions/:sid", ctrl.Session)
		apiRouter.GET("/message", ctrl.Message)
	}

	r.GET("/export/:format/:id", ctrl.Export)
	r.POST("/import/universal", ctrl.Import)
	r.GET("/ws/changes", ctrl.Watch)
}

// NewEngine 带访问日志和请求统计的 gin 引擎
func NewEngine(ctrl *views.GlebaController, log *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logger.GinAccess(log), metrics.Middleware())
	if gin.Mode() == gin.DebugMode {
		r.Use(gin.Logger())
	}
	r.MaxMultipartMemory = 64 << 20
	GlebaRouters(r, ctrl)
	return r
}
