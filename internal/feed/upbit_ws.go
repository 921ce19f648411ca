package feed

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"tradeflow/internal/model"
	"tradeflow/pkg/logger"
	"tradeflow/utils"
)

// WsFeed 公共行情websocket客户端
// 订阅逐笔成交流，按周期聚合成已收盘bar写入缓存
// 断线自动重连，聚合中的bar跨越周期边界时收盘并广播

type tradeTick struct {
	Type      string  `json:"type"`
	Code      string  `json:"code"`
	Price     float64 `json:"trade_price"`
	Volume    float64 `json:"trade_volume"`
	Timestamp int64   `json:"timestamp"` // 毫秒
}

type aggKey struct {
	ticker   string
	interval string
}

// openBar 聚合中的bar，start为所属周期起点（秒）
type openBar struct {
	start int64
	bar   model.Bar
}

type WsFeed struct {
	url         string
	dialTimeout time.Duration
	bufferSize  int

	mu      sync.Mutex
	buffers map[aggKey]*CandleBuffer
	open    map[aggKey]*openBar
	waiters map[aggKey][]chan struct{}
	tickers map[string]bool
}

func NewWsFeed(url string, dialTimeout time.Duration, bufferSize int) *WsFeed {
	if dialTimeout <= 0 {
		dialTimeout = 10 * time.Second
	}
	return &WsFeed{
		url:         url,
		dialTimeout: dialTimeout,
		bufferSize:  bufferSize,
		buffers:     make(map[aggKey]*CandleBuffer),
		open:        make(map[aggKey]*openBar),
		waiters:     make(map[aggKey][]chan struct{}),
		tickers:     make(map[string]bool),
	}
}

// Subscribe 登记一个需要聚合的ticker×interval，必须在Run之前或运行中调用
func (f *WsFeed) Subscribe(ticker, interval string) error {
	if _, err := IntervalDuration(interval); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := aggKey{ticker: ticker, interval: interval}
	if _, ok := f.buffers[key]; !ok {
		f.buffers[key] = NewCandleBuffer(f.bufferSize)
	}
	f.tickers[ticker] = true
	return nil
}

// Run 维持连接直到ctx取消，断开后退避重连
func (f *WsFeed) Run(ctx context.Context) {
	backoff := time.Second
	for {
		if err := f.runOnce(ctx); err != nil {
			logger.Warn("ws feed disconnected", logger.Pair("err", err.Error()))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (f *WsFeed) runOnce(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: f.dialTimeout}
	conn, _, err := dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := f.sendSubscription(conn); err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var tick tradeTick
		if err := json.Unmarshal(data, &tick); err != nil || tick.Type != "trade" {
			continue
		}
		f.ingest(tick)
	}
}

func (f *WsFeed) sendSubscription(conn *websocket.Conn) error {
	f.mu.Lock()
	codes := make([]string, 0, len(f.tickers))
	for t := range f.tickers {
		codes = append(codes, t)
	}
	f.mu.Unlock()

	msg := []interface{}{
		map[string]string{"ticket": utils.GenUUID16()},
		map[string]interface{}{"type": "trade", "codes": codes},
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// ingest 把一笔成交并入所有订阅了该ticker的周期聚合
func (f *WsFeed) ingest(tick tradeTick) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ts := tick.Timestamp / 1000
	for key := range f.buffers {
		if key.ticker != tick.Code {
			continue
		}
		dur, err := IntervalDuration(key.interval)
		if err != nil {
			continue
		}
		sec := int64(dur / time.Second)
		start := ts - ts%sec

		cur, ok := f.open[key]
		if ok && start > cur.start {
			// 跨过周期边界，上一根bar收盘
			f.closeBarLocked(key, cur)
			ok = false
		}
		if !ok {
			f.open[key] = &openBar{
				start: start,
				bar: model.Bar{
					Open:      tick.Price,
					High:      tick.Price,
					Low:       tick.Price,
					Close:     tick.Price,
					Volume:    tick.Volume,
					Timestamp: start,
				},
			}
			continue
		}

		if tick.Price > cur.bar.High {
			cur.bar.High = tick.Price
		}
		if tick.Price < cur.bar.Low {
			cur.bar.Low = tick.Price
		}
		cur.bar.Close = tick.Price
		cur.bar.Volume += tick.Volume
	}
}

func (f *WsFeed) closeBarLocked(key aggKey, ob *openBar) {
	f.buffers[key].Push(ob.bar)
	delete(f.open, key)
	for _, ch := range f.waiters[key] {
		close(ch)
	}
	f.waiters[key] = nil
}

// LatestBars 最近count根已收盘bar，不含聚合中的bar
func (f *WsFeed) LatestBars(ctx context.Context, ticker, interval string, count int) ([]model.Bar, error) {
	f.mu.Lock()
	buf, ok := f.buffers[aggKey{ticker: ticker, interval: interval}]
	f.mu.Unlock()
	if !ok {
		return nil, model.ErrInsufficientData
	}
	bars := buf.LastN(count)
	if len(bars) == 0 {
		return nil, model.ErrInsufficientData
	}
	return bars, nil
}

// WaitBarClose 阻塞到下一根bar收盘，ctx取消时立即返回
func (f *WsFeed) WaitBarClose(ctx context.Context, ticker, interval string) error {
	key := aggKey{ticker: ticker, interval: interval}
	ch := make(chan struct{})
	f.mu.Lock()
	f.waiters[key] = append(f.waiters[key], ch)
	f.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ch:
		return nil
	}
}
