package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"tradeflow/conf"
	"tradeflow/internal/dispatch"
	"tradeflow/internal/exchange"
	"tradeflow/internal/feed"
	"tradeflow/internal/indicator"
	"tradeflow/internal/model"
	"tradeflow/internal/model/entity"
	"tradeflow/internal/reconcile"
	"tradeflow/internal/strategy"
	"tradeflow/pkg/logger"
)

// 单用户交易管道：bar收盘 → 取K线 → 算指标 → 策略评估 → 派单
// tick循环、对账器、手动强平三个生产者共用同一把用户锁
// 用户之间完全隔离，没有任何共享可变状态

// Indicators 指标计算端口，测试里用脚本化实现喂指定快照
type Indicators interface {
	Compute(bars []model.Bar) ([]model.IndicatorSnapshot, error)
	MinBars() int
}

type PipelineDeps struct {
	Feed       feed.Feed
	Indicators Indicators
	Store      exchange.OrderStore
	Balances   exchange.BalanceSource // 下单头寸折算的余额来源，模拟走虚拟账本，实盘走交易所
	Positions  dispatch.PositionStore
	Audit      dispatch.AuditSink
	Executor   exchange.Executor
	Exchange   exchange.Exchange // 实盘对账用，test模式可为nil
}

type Pipeline struct {
	userID string
	params model.StrategyParams
	cfg    conf.EngineConfig
	deps   PipelineDeps

	strat       *strategy.Strategy
	disp        *dispatch.Dispatcher
	intervalSec int64

	// mu保护pos，tick、对账、强平三方串行
	mu  sync.Mutex
	pos strategy.PositionState

	stateMu       sync.Mutex
	errCount      int
	lastHeartbeat time.Time
	fatal         error
}

func NewPipeline(userID string, params model.StrategyParams, cfg conf.EngineConfig, deps PipelineDeps) (*Pipeline, error) {
	dur, err := feed.IntervalDuration(params.Interval)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		userID:      userID,
		params:      params,
		cfg:         cfg,
		deps:        deps,
		strat:       strategy.New(params),
		disp:        dispatch.NewDispatcher(userID, params, deps.Store, deps.Balances, deps.Positions, deps.Audit, deps.Executor),
		intervalSec: int64(dur / time.Second),
	}, nil
}

// Recover 从持久化仓位恢复内存状态，启动时调用一次
// 仓位记录缺失但存在未平的成交买单时，以最后一笔买单兜底重建
func (p *Pipeline) Recover(ctx context.Context) error {
	rec, err := p.deps.Positions.Read(ctx, p.userID, p.params.Ticker)
	if err != nil {
		return err
	}
	if rec != nil {
		p.pos = strategy.FromRecord(&strategy.PositionRecordView{
			HasPosition:   rec.HasPosition,
			Qty:           rec.Qty,
			EntryPrice:    rec.EntryPrice,
			EntryBarIndex: rec.EntryBarIndex,
			HighestPrice:  rec.HighestPrice,
			TrailingArmed: rec.TrailingArmed,
			BarsHeld:      rec.BarsHeld,
		})
	} else if buy, err := p.deps.Store.LastFilledBuy(ctx, p.userID, p.params.Ticker); err != nil {
		return err
	} else if buy != nil {
		p.pos = strategy.PositionState{}
		p.pos.Open(buy.FilledQty, buy.AvgFillPrice, buy.BarIndex)
	}

	if p.pos.Corrupted() {
		return model.ErrStateCorruption
	}
	return nil
}

// Run 主循环，ctx取消后退出；返回非nil表示该用户致命失败
func (p *Pipeline) Run(ctx context.Context) error {
	for {
		if err := p.deps.Feed.WaitBarClose(ctx, p.params.Ticker, p.params.Interval); err != nil {
			return nil // 取消是正常退出
		}
		p.heartbeat()

		err := p.tickWithRetry(ctx)
		switch {
		case err == nil:
			p.resetErrors()
		case errors.Is(err, context.Canceled):
			return nil
		case errors.Is(err, model.ErrStateCorruption):
			p.setFatal(err)
			return err
		case model.IsConstraintViolation(err):
			// 本地约束拒绝不计入失败阈值
			logger.Info("decision rejected",
				logger.Pair("user_id", p.userID),
				logger.Pair("err", err.Error()))
		default:
			if p.countError() >= p.cfg.ErrorThreshold {
				err = errors.New("consecutive error threshold exceeded: " + err.Error())
				p.setFatal(err)
				return err
			}
			logger.Warn("tick skipped",
				logger.Pair("user_id", p.userID),
				logger.Pair("err", err.Error()))
		}
	}
}

// tickWithRetry 瞬时错误有界退避重试，重试耗尽后整个周期作废
func (p *Pipeline) tickWithRetry(ctx context.Context) error {
	backoff := p.cfg.RetryBackoff
	var err error
	for attempt := 0; attempt <= p.cfg.RetryMax; attempt++ {
		err = p.tick(ctx)
		if err == nil || !model.IsTransient(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	p.auditSkip(ctx, err)
	return err
}

func (p *Pipeline) tick(ctx context.Context) error {
	bars, err := p.deps.Feed.LatestBars(ctx, p.params.Ticker, p.params.Interval, p.warmup())
	if err != nil {
		if errors.Is(err, model.ErrInsufficientData) {
			return nil // 预热阶段，不算错误
		}
		return model.Transient(err)
	}

	snaps, err := p.deps.Indicators.Compute(bars)
	if err != nil {
		if errors.Is(err, model.ErrInsufficientData) {
			return nil
		}
		return err
	}
	if len(snaps) < 2 {
		return nil
	}

	last := len(bars) - 1
	bar := bars[last]
	in := strategy.EvalInput{
		Bar:      bar,
		Prev:     snaps[last-1],
		Cur:      snaps[last],
		BarIndex: p.barIndex(bar),
		MeanVol:  indicator.MeanVolatility(snaps),
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pos.Corrupted() {
		return model.ErrStateCorruption
	}
	if p.pos.HasPosition {
		p.pos.Track(bar.Close, p.params.TrailingActivationPct)
	}

	dec := p.strat.Evaluate(in, &p.pos)
	p.auditDecision(ctx, in, dec)

	if _, err := p.disp.Dispatch(ctx, dec, &p.pos); err != nil {
		return err
	}
	return nil
}

// barIndex 用bar起始时间换算的确定性序号，重启后幂等键依然稳定
func (p *Pipeline) barIndex(bar model.Bar) int {
	return int(bar.Timestamp / p.intervalSec)
}

func (p *Pipeline) warmup() int {
	w := p.cfg.WarmupBars
	if min := p.deps.Indicators.MinBars(); w < min {
		w = min
	}
	return w
}

// ForceExit 手动强平，和tick、对账竞争同一把锁
func (p *Pipeline) ForceExit(ctx context.Context) error {
	bars, err := p.deps.Feed.LatestBars(ctx, p.params.Ticker, p.params.Interval, 1)
	if err != nil {
		return model.Transient(err)
	}
	bar := bars[len(bars)-1]

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.pos.HasPosition {
		return model.Constraint("no position to exit")
	}
	dec := model.TradeDecision{
		Type:     model.DecisionSell,
		Reason:   "force_exit",
		BarIndex: p.barIndex(bar),
		Price:    bar.Close,
	}
	entry := &entity.AuditEntry{
		UserID:   p.userID,
		Ticker:   p.params.Ticker,
		BarIndex: dec.BarIndex,
		Price:    dec.Price,
		Decision: string(dec.Type),
		Reason:   dec.Reason,
	}
	entry.SetParams(p.params)
	if err := p.deps.Audit.Record(ctx, entry); err != nil {
		logger.Warn("audit record failed", logger.Pair("user_id", p.userID), logger.Pair("err", err.Error()))
	}

	_, err = p.disp.Dispatch(ctx, dec, &p.pos)
	return err
}

// NewReconciler 构造与本管道共享用户锁和仓位的对账器
func (p *Pipeline) NewReconciler(interval time.Duration) *reconcile.Reconciler {
	return reconcile.New(p.userID, p.params.Ticker, interval,
		p.deps.Store, p.deps.Exchange, p.deps.Positions, p.deps.Audit, &p.mu, &p.pos)
}

func (p *Pipeline) auditDecision(ctx context.Context, in strategy.EvalInput, dec model.TradeDecision) {
	entry := &entity.AuditEntry{
		UserID:     p.userID,
		Ticker:     p.params.Ticker,
		BarIndex:   dec.BarIndex,
		BarTime:    time.Unix(in.Bar.Timestamp, 0),
		Price:      in.Bar.Close,
		Macd:       in.Cur.Macd,
		Signal:     in.Cur.Signal,
		Histogram:  in.Cur.Histogram,
		MaFast:     in.Cur.MaFast,
		MaSlow:     in.Cur.MaSlow,
		Volatility: in.Cur.Volatility,
		Decision:   string(dec.Type),
		Reason:     dec.Reason,
	}
	entry.SetChecks(dec.Checks)
	if err := p.deps.Audit.Record(ctx, entry); err != nil {
		logger.Warn("audit record failed", logger.Pair("user_id", p.userID), logger.Pair("err", err.Error()))
	}
}

// AuditStart 启动时记录一条当前参数快照，供事后追溯参数变更
func (p *Pipeline) AuditStart(ctx context.Context) {
	entry := &entity.AuditEntry{
		UserID:   p.userID,
		Ticker:   p.params.Ticker,
		Decision: string(model.DecisionHold),
		Reason:   "engine_start",
	}
	entry.SetParams(p.params)
	if err := p.deps.Audit.Record(ctx, entry); err != nil {
		logger.Warn("audit record failed", logger.Pair("user_id", p.userID), logger.Pair("err", err.Error()))
	}
}

// auditSkip 重试耗尽跳过的周期也要留痕
func (p *Pipeline) auditSkip(ctx context.Context, cause error) {
	entry := &entity.AuditEntry{
		UserID:   p.userID,
		Ticker:   p.params.Ticker,
		Decision: string(model.DecisionHold),
		Reason:   "cycle_skipped: " + cause.Error(),
	}
	if err := p.deps.Audit.Record(ctx, entry); err != nil {
		logger.Warn("audit record failed", logger.Pair("user_id", p.userID), logger.Pair("err", err.Error()))
	}
}

func (p *Pipeline) heartbeat() {
	p.stateMu.Lock()
	p.lastHeartbeat = time.Now()
	p.stateMu.Unlock()
}

func (p *Pipeline) resetErrors() {
	p.stateMu.Lock()
	p.errCount = 0
	p.stateMu.Unlock()
}

func (p *Pipeline) countError() int {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	p.errCount++
	return p.errCount
}

func (p *Pipeline) setFatal(err error) {
	p.stateMu.Lock()
	p.fatal = err
	p.stateMu.Unlock()
}

// Health 当前错误计数和心跳，监管器status用
func (p *Pipeline) Health() (errCount int, lastHeartbeat time.Time, fatal error) {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	return p.errCount, p.lastHeartbeat, p.fatal
}

// Position 仓位快照副本
func (p *Pipeline) Position() strategy.PositionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pos
}
