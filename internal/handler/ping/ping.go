package ping

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Ping 健康探针，启动自检和负载均衡探活都走这里
func Ping() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.String(http.StatusOK, "pong")
	}
}
