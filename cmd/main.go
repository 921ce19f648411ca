package main

import (
	"context"
	"fmt"
	"log"
	"os"

	api "tradeflow/cmd/tradeflow"
	"tradeflow/conf"
	"tradeflow/pkg/cache"
	"tradeflow/pkg/db"
	"tradeflow/pkg/logger"
)

func main() {

	// 加载配置文件
	err := conf.LoadConfig("conf/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	appCfg := conf.AppConfig
	logger.Init(appCfg.Log)
	defer logger.Sync()

	dbUser := os.Getenv("DB_USER")
	dbPass := os.Getenv("DB_PASSWORD")
	dbHost := os.Getenv("DB_HOST")
	dbPort := os.Getenv("DB_PORT")
	dbName := os.Getenv("DB_NAME")
	if dbUser == "" || dbPass == "" || dbHost == "" {
		dbUser = appCfg.Db.Username
		dbPass = appCfg.Db.Password
		dbHost = appCfg.Db.Host
		dbPort = appCfg.Db.Port
		dbName = appCfg.Db.DbName
	}

	// 初始化数据库
	datasource := db.Init(db.Config{
		User:      dbUser,
		Password:  dbPass,
		Host:      dbHost,
		Port:      dbPort,
		DBName:    dbName,
		ParseTime: true,
	})

	// redis可选，未启用时状态快照只留在进程内
	if appCfg.Redis.Enabled {
		redisHost := os.Getenv("REDIS_HOST")
		redisPort := os.Getenv("REDIS_PORT")
		if redisHost != "" && redisPort != "" {
			appCfg.Redis.Addr = fmt.Sprintf("%s:%s", redisHost, redisPort)
		}
		if pass := os.Getenv("REDIS_PASSWORD"); pass != "" {
			appCfg.Redis.Password = pass
		}
		if err := cache.InitRedis(appCfg.Redis); err != nil {
			logger.Warn("redis init failed", logger.Pair("err", err.Error()))
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srvRouter, sup, err := api.InitRouter(ctx, datasource)
	if err != nil {
		logger.Fatalf("init router failed: %v", err)
	}

	// 创建并启动服务
	srv := api.NewServer(&appCfg)
	srv.RegisterOnShutdown(func() {
		// 先停引擎排空在途订单，再断外部资源
		sup.StopAll()
		cancel()
		if datasource != nil {
			if m, err := datasource.DB(); err == nil {
				_ = m.Close()
			}
		}
		cache.CloseRedis()
	})

	srv.Run(srvRouter)
}
