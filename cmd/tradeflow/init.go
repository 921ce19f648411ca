package api

import (
	"context"

	"gorm.io/gorm"

	"tradeflow/conf"
	"tradeflow/internal/dao"
	"tradeflow/internal/engine"
	"tradeflow/internal/feed"
	engineHandler "tradeflow/internal/handler/engine"
	"tradeflow/internal/model/entity"
	"tradeflow/internal/router"
)

// InitRouter 组装交易引擎和控制面路由
// 行情源在后台常驻，引擎实例按用户经由控制面启动
func InitRouter(ctx context.Context, db *gorm.DB) (Router, *engine.Supervisor, error) {
	appCfg := conf.AppConfig

	if err := db.AutoMigrate(
		&entity.OrderRecord{},
		&entity.PositionRecord{},
		&entity.AuditEntry{},
		&entity.VirtualBalance{},
	); err != nil {
		return nil, nil, err
	}

	orderDao := dao.NewOrderDao(db)
	positionDao := dao.NewPositionDao(db)
	auditDao := dao.NewAuditDao(db)
	accountDao := dao.NewAccountDao(db)

	wsFeed := feed.NewWsFeed(appCfg.Feed.WsURL, appCfg.Feed.DialTimeout, appCfg.Feed.BufferSize)
	go wsFeed.Run(ctx)

	sup := engine.NewSupervisor(appCfg.Engine, engine.SupervisorDeps{
		Feed:       wsFeed,
		Subscriber: wsFeed,
		Store:      orderDao,
		Ledger:     accountDao,
		Positions:  positionDao,
		Audit:      auditDao,
	})

	eh := engineHandler.NewHandler(sup, auditDao)
	return router.NewApiRouter(eh), sup, nil
}
