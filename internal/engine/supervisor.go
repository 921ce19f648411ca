package engine

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"tradeflow/conf"
	"tradeflow/internal/dispatch"
	"tradeflow/internal/exchange"
	"tradeflow/internal/feed"
	"tradeflow/internal/indicator"
	"tradeflow/internal/model"
	"tradeflow/pkg/cache"
	"tradeflow/pkg/logger"
)

// 监管器：管理每个用户的管道生命周期
// STOPPED → STARTING → RUNNING → STOPPING → STOPPED，FAILED为吸收态
// 单用户失败只停该用户，绝不波及其他用户

type EngineState string

const (
	StateStopped  EngineState = "STOPPED"
	StateStarting EngineState = "STARTING"
	StateRunning  EngineState = "RUNNING"
	StateStopping EngineState = "STOPPING"
	StateFailed   EngineState = "FAILED"
)

// Status 控制面查询结果
type Status struct {
	State         EngineState `json:"state"`
	LastHeartbeat time.Time   `json:"last_heartbeat"`
	ErrorCount    int         `json:"error_count"`
	LastError     string      `json:"last_error,omitempty"`
}

// FeedSubscriber 行情源的订阅登记，内存脚本源可不实现
type FeedSubscriber interface {
	Subscribe(ticker, interval string) error
}

type SupervisorDeps struct {
	Feed       feed.Feed
	Subscriber FeedSubscriber // 可为nil
	Store      exchange.OrderStore
	Ledger     exchange.Ledger
	Positions  dispatch.PositionStore
	Audit      dispatch.AuditSink
	Exchange   exchange.Exchange // live模式必须非nil
}

type runner struct {
	pipeline   *Pipeline
	params     model.StrategyParams
	state      EngineState
	pipeCancel context.CancelFunc
	done       chan struct{}
}

type Supervisor struct {
	cfg  conf.EngineConfig
	deps SupervisorDeps

	mu      sync.Mutex
	runners map[string]*runner
}

func NewSupervisor(cfg conf.EngineConfig, deps SupervisorDeps) *Supervisor {
	return &Supervisor{cfg: cfg, deps: deps, runners: make(map[string]*runner)}
}

// Start 校验参数并拉起该用户的管道，已在运行则拒绝
func (s *Supervisor) Start(userID string, params model.StrategyParams) error {
	if err := params.Validate(); err != nil {
		return err
	}
	if params.Mode == model.ModeLive && s.deps.Exchange == nil {
		return model.Constraint("live mode requires an exchange backend")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.runners[userID]; ok {
		switch r.state {
		case StateStarting, StateRunning, StateStopping:
			return model.Constraint("engine already running for user %s", userID)
		}
	}

	if s.deps.Subscriber != nil {
		if err := s.deps.Subscriber.Subscribe(params.Ticker, params.Interval); err != nil {
			return err
		}
	}

	var exec exchange.Executor
	var balances exchange.BalanceSource
	if params.Mode == model.ModeTest {
		s.seedVirtualAccount(userID, params.Ticker)
		exec = exchange.NewSimulatedExecutor(s.deps.Store, s.deps.Ledger, params.FeeRate)
		balances = s.deps.Ledger
	} else {
		exec = exchange.NewLiveExecutor(s.deps.Store, s.deps.Exchange)
		balances = exchange.NewExchangeBalance(s.deps.Exchange)
	}

	p, err := NewPipeline(userID, params, s.cfg, PipelineDeps{
		Feed:       s.deps.Feed,
		Indicators: indicator.NewEngine(indicator.ConfigFromParams(params)),
		Store:      s.deps.Store,
		Balances:   balances,
		Positions:  s.deps.Positions,
		Audit:      s.deps.Audit,
		Executor:   exec,
		Exchange:   s.deps.Exchange,
	})
	if err != nil {
		return err
	}

	pipeCtx, pipeCancel := context.WithCancel(context.Background())
	r := &runner{
		pipeline:   p,
		params:     params,
		state:      StateStarting,
		pipeCancel: pipeCancel,
		done:       make(chan struct{}),
	}
	s.runners[userID] = r
	publishStatus(userID, snapshot(r))

	go s.runUser(userID, r, pipeCtx)
	return nil
}

func (s *Supervisor) runUser(userID string, r *runner, pipeCtx context.Context) {
	defer close(r.done)

	if err := r.pipeline.Recover(pipeCtx); err != nil {
		logger.Error("pipeline recover failed",
			logger.Pair("user_id", userID),
			logger.Pair("err", err.Error()))
		r.pipeline.setFatal(err)
		s.transition(userID, r, StateFailed)
		return
	}

	// 对账器独立ctx，停机时先停tick再排空在途订单
	reconCtx, reconCancel := context.WithCancel(context.Background())
	defer reconCancel()
	var rc interface {
		Run(ctx context.Context)
		PendingCount(ctx context.Context) (int, error)
	}
	if r.params.Mode == model.ModeLive {
		rec := r.pipeline.NewReconciler(s.cfg.ReconcileInterval)
		rc = rec
		go rec.Run(reconCtx)
	}

	r.pipeline.AuditStart(pipeCtx)
	s.transition(userID, r, StateRunning)

	// 运行期间周期性刷新redis快照，TTL一分钟，停止刷新后自然过期
	go func() {
		tk := time.NewTicker(30 * time.Second)
		defer tk.Stop()
		for {
			select {
			case <-pipeCtx.Done():
				return
			case <-tk.C:
				s.mu.Lock()
				st := snapshot(r)
				s.mu.Unlock()
				publishStatus(userID, st)
			}
		}
	}()

	err := r.pipeline.Run(pipeCtx)

	if rc != nil {
		s.drainPending(userID, rc)
	}

	if err != nil {
		s.transition(userID, r, StateFailed)
		return
	}
	s.transition(userID, r, StateStopped)
}

// drainPending 停机前等在途订单到达终态，超时放弃并告警
func (s *Supervisor) drainPending(userID string, rc interface {
	PendingCount(ctx context.Context) (int, error)
}) {
	deadline := time.Now().Add(s.cfg.StopDrainTimeout)
	for time.Now().Before(deadline) {
		n, err := rc.PendingCount(context.Background())
		if err == nil && n == 0 {
			return
		}
		time.Sleep(s.cfg.ReconcileInterval)
	}
	logger.Warn("stop drain timeout with pending orders", logger.Pair("user_id", userID))
}

// Stop 协作式停止：不再调度新tick，在途订单由对账器收尾
func (s *Supervisor) Stop(userID string) error {
	s.mu.Lock()
	r, ok := s.runners[userID]
	if !ok || r.state == StateStopped || r.state == StateFailed {
		s.mu.Unlock()
		return model.Constraint("engine not running for user %s", userID)
	}
	if r.state != StateStopping {
		r.state = StateStopping
		publishStatus(userID, snapshot(r))
		r.pipeCancel()
	}
	done := r.done
	s.mu.Unlock()

	<-done
	return nil
}

// Restart 停止后用原参数重新拉起
func (s *Supervisor) Restart(userID string) error {
	s.mu.Lock()
	r, ok := s.runners[userID]
	if !ok {
		s.mu.Unlock()
		return model.Constraint("no engine for user %s", userID)
	}
	params := r.params
	state := r.state
	s.mu.Unlock()

	switch state {
	case StateStarting, StateRunning, StateStopping:
		if err := s.Stop(userID); err != nil {
			return err
		}
	default:
		<-r.done
	}
	return s.Start(userID, params)
}

// Status 单用户状态查询，错误从不跨用户边界抛出
func (s *Supervisor) Status(userID string) (*Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runners[userID]
	if !ok {
		return &Status{State: StateStopped}, nil
	}
	return snapshot(r), nil
}

// snapshot 调用方需持有s.mu
func snapshot(r *runner) *Status {
	errCount, hb, fatal := r.pipeline.Health()
	st := &Status{
		State:         r.state,
		LastHeartbeat: hb,
		ErrorCount:    errCount,
	}
	if fatal != nil {
		st.LastError = fatal.Error()
	}
	return st
}

// AccountInitializer 开户语义：账户已存在则不动，并发安全
type AccountInitializer interface {
	InitAccount(ctx context.Context, userID, asset string, seed float64) error
}

// seedVirtualAccount 模拟账户首次启动注入初始资金
func (s *Supervisor) seedVirtualAccount(userID, ticker string) {
	ctx := context.Background()
	asset := exchange.QuoteAsset(ticker)

	if init, ok := s.deps.Ledger.(AccountInitializer); ok {
		if err := init.InitAccount(ctx, userID, asset, s.cfg.SeedBalance); err != nil {
			logger.Warn("seed virtual account failed",
				logger.Pair("user_id", userID),
				logger.Pair("err", err.Error()))
		}
		return
	}

	bal, err := s.deps.Ledger.Balance(ctx, userID, asset)
	if err != nil || bal > 0 {
		return
	}
	if err := s.deps.Ledger.SetBalance(ctx, userID, asset, s.cfg.SeedBalance); err != nil {
		logger.Warn("seed virtual account failed",
			logger.Pair("user_id", userID),
			logger.Pair("err", err.Error()))
	}
}

// ForceExit 手动强平，只在RUNNING状态接受
func (s *Supervisor) ForceExit(ctx context.Context, userID string) error {
	s.mu.Lock()
	r, ok := s.runners[userID]
	running := ok && r.state == StateRunning
	s.mu.Unlock()
	if !running {
		return model.Constraint("engine not running for user %s", userID)
	}
	return r.pipeline.ForceExit(ctx)
}

// Position 当前仓位快照
func (s *Supervisor) Position(userID string) (*PositionView, error) {
	s.mu.Lock()
	r, ok := s.runners[userID]
	s.mu.Unlock()
	if !ok {
		return nil, model.Constraint("no engine for user %s", userID)
	}
	pos := r.pipeline.Position()
	return &PositionView{
		Ticker:        r.params.Ticker,
		HasPosition:   pos.HasPosition,
		Qty:           pos.Qty,
		EntryPrice:    pos.EntryPrice,
		HighestPrice:  pos.HighestPrice,
		TrailingArmed: pos.TrailingArmed,
		BarsHeld:      pos.BarsHeld,
	}, nil
}

type PositionView struct {
	Ticker        string  `json:"ticker"`
	HasPosition   bool    `json:"has_position"`
	Qty           float64 `json:"qty"`
	EntryPrice    float64 `json:"entry_price"`
	HighestPrice  float64 `json:"highest_price"`
	TrailingArmed bool    `json:"trailing_armed"`
	BarsHeld      int     `json:"bars_held"`
}

// StopAll 进程退出前停掉全部用户
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	users := make([]string, 0, len(s.runners))
	for u, r := range s.runners {
		if r.state == StateStarting || r.state == StateRunning {
			users = append(users, u)
		}
	}
	s.mu.Unlock()
	for _, u := range users {
		if err := s.Stop(u); err != nil {
			logger.Warn("stop on shutdown failed", logger.Pair("user_id", u), logger.Pair("err", err.Error()))
		}
	}
}

func (s *Supervisor) transition(userID string, r *runner, state EngineState) {
	s.mu.Lock()
	if state == StateStopped && r.state == StateFailed {
		s.mu.Unlock()
		return
	}
	r.state = state
	st := snapshot(r)
	s.mu.Unlock()
	publishStatus(userID, st)
	logger.Info("engine state changed",
		logger.Pair("user_id", userID),
		logger.Pair("state", string(state)))
}

// publishStatus 状态快照写入redis供看板轮询，redis未启用时静默跳过
func publishStatus(userID string, st *Status) {
	data, err := json.Marshal(st)
	if err != nil {
		return
	}
	_ = cache.PublishEngineStatus(context.Background(), userID, data, time.Minute)
}
