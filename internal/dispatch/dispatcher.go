package dispatch

import (
	"context"
	"math"
	"strings"

	"tradeflow/internal/exchange"
	"tradeflow/internal/model"
	"tradeflow/internal/model/entity"
	"tradeflow/internal/strategy"
	"tradeflow/pkg/logger"
)

// 派单器：把交易决策变成带幂等键的下单请求
// 仓位状态只在执行器确认成交后才变更，决策阶段绝不预写

// PositionStore 仓位持久化端口
type PositionStore interface {
	Read(ctx context.Context, userID, ticker string) (*entity.PositionRecord, error)
	Write(ctx context.Context, rec *entity.PositionRecord) error
}

// AuditSink 审计日志端口，append-only
type AuditSink interface {
	Record(ctx context.Context, entry *entity.AuditEntry) error
}

type Dispatcher struct {
	userID    string
	params    model.StrategyParams
	store     exchange.OrderStore
	balances  exchange.BalanceSource
	positions PositionStore
	audit     AuditSink
	exec      exchange.Executor
}

func NewDispatcher(userID string, params model.StrategyParams,
	store exchange.OrderStore, balances exchange.BalanceSource,
	positions PositionStore, audit AuditSink, exec exchange.Executor) *Dispatcher {
	return &Dispatcher{
		userID:    userID,
		params:    params,
		store:     store,
		balances:  balances,
		positions: positions,
		audit:     audit,
		exec:      exec,
	}
}

// Dispatch 消费一条决策，HOLD和幂等重复都是无操作
// 返回的句柄为nil表示本次没有产生订单
func (d *Dispatcher) Dispatch(ctx context.Context, dec model.TradeDecision, pos *strategy.PositionState) (*exchange.OrderHandle, error) {
	if dec.Type == model.DecisionHold {
		return nil, nil
	}

	var side model.OrderSide
	switch dec.Type {
	case model.DecisionBuy:
		if pos.HasPosition {
			return nil, model.Constraint("BUY while in position")
		}
		side = model.Buy
	case model.DecisionSell:
		if !pos.HasPosition {
			return nil, model.Constraint("SELL while flat")
		}
		side = model.Sell
	}

	key := model.IdempotencyKey(d.userID, d.params.Ticker, dec.BarIndex, side)
	exists, err := d.store.ExistsKey(ctx, key)
	if err != nil {
		return nil, model.Transient(err)
	}
	if exists {
		// 同一bar同一方向已经下过单，重试路径直接跳过
		logger.Info("duplicate dispatch skipped",
			logger.Pair("user_id", d.userID),
			logger.Pair("bar_index", dec.BarIndex),
			logger.Pair("side", string(side)))
		return nil, nil
	}

	pending, err := d.store.CountPending(ctx, d.userID, d.params.Ticker)
	if err != nil {
		return nil, model.Transient(err)
	}
	if pending > 0 {
		return nil, model.Constraint("pending order already in flight")
	}

	qty, err := d.sizeOrder(ctx, side, dec.Price, pos)
	if err != nil {
		return nil, err
	}

	req := model.OrderRequest{
		UserID:         d.userID,
		Ticker:         d.params.Ticker,
		Side:           side,
		Quantity:       qty,
		ReferencePrice: dec.Price,
		BarIndex:       dec.BarIndex,
		IdempotencyKey: key,
	}
	handle, err := d.exec.Execute(ctx, req)
	if err != nil {
		return nil, err
	}

	// 模拟路径同步终态，仓位在这里按确认成交推进；实盘路径由对账器收尾
	if handle.Terminal {
		switch handle.Record.Status {
		case string(model.OrderFilled):
			if err := d.applyFill(ctx, handle.Record, pos); err != nil {
				return handle, err
			}
		case string(model.OrderRejected):
			// 同步拒单仓位不动，只留审计记录
			entry := &entity.AuditEntry{
				UserID:   d.userID,
				Ticker:   d.params.Ticker,
				BarIndex: handle.Record.BarIndex,
				Price:    handle.Record.ReferencePrice,
				Decision: strings.ToUpper(handle.Record.Side),
				Reason:   "order_rejected: " + handle.Record.Reason,
			}
			if err := d.audit.Record(ctx, entry); err != nil {
				return handle, err
			}
		}
	}
	return handle, nil
}

// sizeOrder 买单按余额比例折算数量，卖单全仓
func (d *Dispatcher) sizeOrder(ctx context.Context, side model.OrderSide, price float64, pos *strategy.PositionState) (float64, error) {
	if price <= 0 {
		return 0, model.Constraint("reference price %.8f not positive", price)
	}

	var qty float64
	if side == model.Buy {
		balance, err := d.balances.Balance(ctx, d.userID, exchange.QuoteAsset(d.params.Ticker))
		if err != nil {
			return 0, model.Transient(err)
		}
		qty = round8(balance * d.params.OrderRatio / (price * (1 + d.params.FeeRate)))
	} else {
		qty = pos.Qty
	}

	if qty <= 0 {
		return 0, model.Constraint("order quantity not positive")
	}
	if notional := qty * price; notional < d.params.MinNotional {
		return 0, model.Constraint("notional %.2f below minimum %.2f", notional, d.params.MinNotional)
	}
	return qty, nil
}

// applyFill 按确认成交推进仓位并持久化
func (d *Dispatcher) applyFill(ctx context.Context, rec *entity.OrderRecord, pos *strategy.PositionState) error {
	switch rec.Side {
	case string(model.Buy):
		pos.Open(rec.FilledQty, rec.AvgFillPrice, rec.BarIndex)
	case string(model.Sell):
		pos.Close()
	}
	return d.positions.Write(ctx, PositionToRecord(d.userID, d.params.Ticker, pos))
}

// PositionToRecord 仓位状态转持久化记录
func PositionToRecord(userID, ticker string, pos *strategy.PositionState) *entity.PositionRecord {
	return &entity.PositionRecord{
		UserID:        userID,
		Ticker:        ticker,
		HasPosition:   pos.HasPosition,
		Qty:           pos.Qty,
		EntryPrice:    pos.EntryPrice,
		EntryBarIndex: pos.EntryBarIndex,
		HighestPrice:  pos.HighestPrice,
		TrailingArmed: pos.TrailingArmed,
		BarsHeld:      pos.BarsHeld,
	}
}

func round8(x float64) float64 {
	return math.Floor(x*1e8) / 1e8
}
