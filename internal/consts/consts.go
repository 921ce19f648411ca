package consts

const (
	// RequestId 请求id名称
	RequestId = "request_id"
	UserID    = "user_id"

	TimeLayout = "2006-01-02 15:04:05"
)
