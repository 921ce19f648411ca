package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tradeflow/internal/consts"
)

// 代表响应给客户端的的一个消息结构，包括错误码，错误信息，响应数据
type ApiResponse struct {
	RequestId string      `json:"request_id"` // 请求的唯一ID
	Code      int         `json:"code"`       // 错误码 0表示无错误
	Message   string      `json:"message"`    // 提示信息
	Data      interface{} `json:"data"`       // 响应数据，前端从这个里面取出数据展示
}

// 发送json格式数据
// 如果err != nil, 失败的话返回http状态码400（返回400比全部200更严谨一些）
func JSON(c *gin.Context, err error, data interface{}) {
	code := 0
	message := "success"
	httpStatus := http.StatusOK
	if err != nil {
		code = 1
		message = err.Error()
		httpStatus = http.StatusBadRequest
	}
	c.JSON(httpStatus, ApiResponse{
		RequestId: c.GetString(consts.RequestId),
		Code:      code,
		Message:   message,
		Data:      data,
	})
}

// NotFound 资源不存在，返回404
func NotFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, ApiResponse{
		RequestId: c.GetString(consts.RequestId),
		Code:      1,
		Message:   message,
	})
}

// TooManyRequests 限频拒绝，返回429
func TooManyRequests(c *gin.Context) {
	c.JSON(http.StatusTooManyRequests, ApiResponse{
		RequestId: c.GetString(consts.RequestId),
		Code:      1,
		Message:   "too many requests",
	})
}
