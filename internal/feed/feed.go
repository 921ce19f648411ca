package feed

import (
	"context"
	"fmt"
	"time"

	"tradeflow/internal/model"
)

// 行情数据端口
// LatestBars保证最后一个元素是最近收盘的bar，永远不含进行中的bar
// WaitBarClose阻塞到下一个bar收盘或ctx取消

type Feed interface {
	LatestBars(ctx context.Context, ticker, interval string, count int) ([]model.Bar, error)
	WaitBarClose(ctx context.Context, ticker, interval string) error
}

// IntervalDuration 把配置里的周期名解析成时长
func IntervalDuration(interval string) (time.Duration, error) {
	switch interval {
	case "minute1":
		return time.Minute, nil
	case "minute3":
		return 3 * time.Minute, nil
	case "minute5":
		return 5 * time.Minute, nil
	case "minute10":
		return 10 * time.Minute, nil
	case "minute15":
		return 15 * time.Minute, nil
	case "minute30":
		return 30 * time.Minute, nil
	case "minute60":
		return time.Hour, nil
	case "day":
		return 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown interval %q", interval)
	}
}
