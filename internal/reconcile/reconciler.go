package reconcile

import (
	"context"
	"strings"
	"sync"
	"time"

	"tradeflow/internal/dispatch"
	"tradeflow/internal/exchange"
	"tradeflow/internal/model"
	"tradeflow/internal/model/entity"
	"tradeflow/internal/strategy"
	"tradeflow/pkg/logger"
)

// 对账器：轮询在途订单，把交易所侧的终态搬回本地
// 和tick循环共用同一把用户锁，仓位推进不会交叉
// 每轮都从存储重读在途列表，重启后自动接管遗留订单

type Reconciler struct {
	userID    string
	ticker    string
	interval  time.Duration
	store     exchange.OrderStore
	ex        exchange.Exchange
	positions dispatch.PositionStore
	audit     dispatch.AuditSink

	mu  *sync.Mutex
	pos *strategy.PositionState
}

func New(userID, ticker string, interval time.Duration,
	store exchange.OrderStore, ex exchange.Exchange,
	positions dispatch.PositionStore, audit dispatch.AuditSink,
	mu *sync.Mutex, pos *strategy.PositionState) *Reconciler {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Reconciler{
		userID:    userID,
		ticker:    ticker,
		interval:  interval,
		store:     store,
		ex:        ex,
		positions: positions,
		audit:     audit,
		mu:        mu,
		pos:       pos,
	}
}

// Run 固定间隔轮询直到ctx取消
func (r *Reconciler) Run(ctx context.Context) {
	tk := time.NewTicker(r.interval)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
			if err := r.Poll(ctx); err != nil {
				logger.Warn("reconcile poll failed",
					logger.Pair("user_id", r.userID),
					logger.Pair("err", err.Error()))
			}
		}
	}
}

// Poll 单轮对账，幂等：已终结的记录会被存储层的状态守卫跳过
func (r *Reconciler) Poll(ctx context.Context) error {
	pending, err := r.store.ListPending(ctx, r.userID)
	if err != nil {
		return model.Transient(err)
	}
	for _, rec := range pending {
		if err := r.settle(ctx, rec); err != nil {
			logger.Warn("order settle failed",
				logger.Pair("user_id", r.userID),
				logger.Pair("order_id", rec.ID),
				logger.Pair("err", err.Error()))
		}
	}
	return nil
}

// PendingCount 当前在途订单数，停机排空时用
func (r *Reconciler) PendingCount(ctx context.Context) (int, error) {
	return r.store.CountPending(ctx, r.userID, r.ticker)
}

func (r *Reconciler) settle(ctx context.Context, rec *entity.OrderRecord) error {
	fill, err := r.ex.GetOrderStatus(ctx, rec.ProviderID, rec.Ticker)
	if err != nil {
		return model.Transient(err)
	}
	if !fill.Status.Terminal() {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec.Status = string(fill.Status)
	rec.FilledQty = fill.FilledQty
	rec.AvgFillPrice = fill.AvgPrice
	rec.Fee = fill.Fee
	applied, err := r.store.Update(ctx, rec)
	if err != nil {
		return err
	}
	if !applied {
		// 别的路径已经把订单推进到终态，仓位变更只跟着赢家走
		return nil
	}

	switch fill.Status {
	case model.OrderFilled:
		if rec.Side == string(model.Buy) {
			r.pos.Open(fill.FilledQty, fill.AvgPrice, rec.BarIndex)
		} else {
			r.pos.Close()
		}
		if err := r.positions.Write(ctx, dispatch.PositionToRecord(r.userID, rec.Ticker, r.pos)); err != nil {
			return err
		}
		logger.Info("order filled",
			logger.Pair("user_id", r.userID),
			logger.Pair("order_id", rec.ID),
			logger.Pair("side", rec.Side),
			logger.Pair("qty", fill.FilledQty),
			logger.Pair("price", fill.AvgPrice))
	case model.OrderRejected, model.OrderCanceled:
		// 仓位不动，只留审计记录
		entry := &entity.AuditEntry{
			UserID:   r.userID,
			Ticker:   rec.Ticker,
			BarIndex: rec.BarIndex,
			Price:    rec.ReferencePrice,
			Decision: strings.ToUpper(rec.Side),
			Reason:   "order_" + strings.ToLower(string(fill.Status)),
		}
		if err := r.audit.Record(ctx, entry); err != nil {
			return err
		}
		logger.Warn("order not filled",
			logger.Pair("user_id", r.userID),
			logger.Pair("order_id", rec.ID),
			logger.Pair("status", string(fill.Status)))
	}
	return nil
}
