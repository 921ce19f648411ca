package router

import (
	"github.com/gin-gonic/gin"

	engineHandler "tradeflow/internal/handler/engine"
	"tradeflow/internal/handler/ping"
	"tradeflow/internal/middleware"
)

type ApiRouter struct {
	engineHandler *engineHandler.Handler
}

func NewApiRouter(eh *engineHandler.Handler) *ApiRouter {
	return &ApiRouter{engineHandler: eh}
}

func (api *ApiRouter) Load(g *gin.Engine) {

	g.GET("/ping", ping.Ping())

	base := g.Group("/api/v1")

	e := base.Group("/engine")
	{
		// 控制面写操作挂防重提交
		e.POST("/start", middleware.AntiDuplicate(), api.engineHandler.Start())
		e.POST("/stop", middleware.AntiDuplicate(), api.engineHandler.Stop())
		e.POST("/restart", middleware.AntiDuplicate(), api.engineHandler.Restart())
		e.POST("/force-exit", middleware.AntiDuplicate(), api.engineHandler.ForceExit())

		// 状态查询供看板轮询，不限频
		e.GET("/status", api.engineHandler.Status())
		e.GET("/position", api.engineHandler.Position())
		e.GET("/audit", api.engineHandler.Audit())
	}
}
