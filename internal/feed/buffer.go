package feed

import (
	"sync"

	"tradeflow/internal/model"
)

// CandleBuffer 定长环形的已收盘bar缓存
// 时间戳必须严格递增，乱序和重复的bar直接丢弃

type CandleBuffer struct {
	mu     sync.RWMutex
	bars   []model.Bar
	maxLen int
}

func NewCandleBuffer(maxLen int) *CandleBuffer {
	if maxLen <= 0 {
		maxLen = 500
	}
	return &CandleBuffer{maxLen: maxLen}
}

// Push 追加一根收盘bar，返回是否接受
func (b *CandleBuffer) Push(bar model.Bar) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n := len(b.bars); n > 0 && bar.Timestamp <= b.bars[n-1].Timestamp {
		return false
	}
	b.bars = append(b.bars, bar)
	if len(b.bars) > b.maxLen {
		b.bars = b.bars[len(b.bars)-b.maxLen:]
	}
	return true
}

// LastN 最近n根bar的副本，不足n根时返回现有全部
func (b *CandleBuffer) LastN(n int) []model.Bar {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if n <= 0 || len(b.bars) == 0 {
		return nil
	}
	if n > len(b.bars) {
		n = len(b.bars)
	}
	out := make([]model.Bar, n)
	copy(out, b.bars[len(b.bars)-n:])
	return out
}

func (b *CandleBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.bars)
}
