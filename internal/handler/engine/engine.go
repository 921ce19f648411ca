package engine

import (
	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"

	"tradeflow/internal/dao"
	"tradeflow/internal/engine"
	"tradeflow/internal/model"
	"tradeflow/pkg/response"
)

// 引擎控制面：启动/停止/重启/状态/强平/审计查询
// user_id从请求参数取，鉴权由外层网关负责

type Handler struct {
	sup      *engine.Supervisor
	auditDao *dao.AuditDao
}

func NewHandler(sup *engine.Supervisor, auditDao *dao.AuditDao) *Handler {
	return &Handler{sup: sup, auditDao: auditDao}
}

// StartReq 启动请求，零值字段用默认参数补齐
type StartReq struct {
	UserID string               `json:"user_id" binding:"required"`
	Params model.StrategyParams `json:"params"`
}

func (h *Handler) Start() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		// 默认参数打底，请求里给了的字段才覆盖
		req := StartReq{Params: model.DefaultParams()}
		if err := ctx.ShouldBindJSON(&req); err != nil {
			response.JSON(ctx, err, nil)
			return
		}
		if err := h.sup.Start(req.UserID, req.Params); err != nil {
			response.JSON(ctx, err, nil)
			return
		}
		response.JSON(ctx, nil, gin.H{"user_id": req.UserID, "params": req.Params})
	}
}

func (h *Handler) Stop() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		userID := ctx.Query("user_id")
		if userID == "" {
			response.JSON(ctx, model.Constraint("user_id required"), nil)
			return
		}
		if err := h.sup.Stop(userID); err != nil {
			response.JSON(ctx, err, nil)
			return
		}
		response.JSON(ctx, nil, nil)
	}
}

func (h *Handler) Restart() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		userID := ctx.Query("user_id")
		if userID == "" {
			response.JSON(ctx, model.Constraint("user_id required"), nil)
			return
		}
		if err := h.sup.Restart(userID); err != nil {
			response.JSON(ctx, err, nil)
			return
		}
		response.JSON(ctx, nil, nil)
	}
}

func (h *Handler) Status() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		userID := ctx.Query("user_id")
		if userID == "" {
			response.JSON(ctx, model.Constraint("user_id required"), nil)
			return
		}
		st, err := h.sup.Status(userID)
		if err != nil {
			response.JSON(ctx, err, nil)
			return
		}
		response.JSON(ctx, nil, st)
	}
}

func (h *Handler) ForceExit() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		userID := ctx.Query("user_id")
		if userID == "" {
			response.JSON(ctx, model.Constraint("user_id required"), nil)
			return
		}
		if err := h.sup.ForceExit(ctx, userID); err != nil {
			response.JSON(ctx, err, nil)
			return
		}
		response.JSON(ctx, nil, nil)
	}
}

func (h *Handler) Position() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		userID := ctx.Query("user_id")
		if userID == "" {
			response.JSON(ctx, model.Constraint("user_id required"), nil)
			return
		}
		pos, err := h.sup.Position(userID)
		if err != nil {
			response.JSON(ctx, err, nil)
			return
		}
		response.JSON(ctx, nil, pos)
	}
}

// Audit 最近的评估记录，看板轮询用
func (h *Handler) Audit() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		userID := ctx.Query("user_id")
		if userID == "" {
			response.JSON(ctx, model.Constraint("user_id required"), nil)
			return
		}
		limit := cast.ToInt(ctx.DefaultQuery("limit", "100"))
		entries, err := h.auditDao.ListRecent(ctx, userID, limit)
		if err != nil {
			response.JSON(ctx, err, nil)
			return
		}
		response.JSON(ctx, nil, entries)
	}
}
