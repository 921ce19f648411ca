package utils

import (
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"

	"tradeflow/internal/consts"
)

var (
	node     *snowflake.Node
	nodeOnce sync.Once
)

// NewID 生成订单/审计记录使用的全局唯一ID
func NewID() int64 {
	nodeOnce.Do(func() {
		var err error
		node, err = snowflake.NewNode(1)
		if err != nil {
			panic(err)
		}
	})
	return node.Generate().Int64()
}

// GenUUID16 生成16位的请求id
func GenUUID16() string {
	s := strings.ReplaceAll(uuid.NewString(), "-", "")
	return s[:16]
}

// Stamp2str 时间戳转字符串
func Stamp2str(timestamp int64) string {
	if timestamp == 0 {
		return ""
	}
	return time.Unix(timestamp, 0).Format(consts.TimeLayout)
}

// Str2stamp 字符串转时间戳
func Str2stamp(str string) int64 {
	t, err := time.Parse(consts.TimeLayout, str)
	if err != nil {
		return 0
	}
	return t.Unix()
}
