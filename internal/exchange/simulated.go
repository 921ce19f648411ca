package exchange

import (
	"context"

	"github.com/google/uuid"

	"tradeflow/internal/model"
	"tradeflow/internal/model/entity"
	"tradeflow/pkg/logger"
)

// 模拟执行器：参考价即成交价，手续费按费率计提，同步返回FILLED
// 账本余额由浮点舍入产生的负数钳位到0并告警，不做静默忽略

type SimulatedExecutor struct {
	store   OrderStore
	ledger  Ledger
	feeRate float64
}

func NewSimulatedExecutor(store OrderStore, ledger Ledger, feeRate float64) *SimulatedExecutor {
	return &SimulatedExecutor{store: store, ledger: ledger, feeRate: feeRate}
}

func (s *SimulatedExecutor) Execute(ctx context.Context, req model.OrderRequest) (*OrderHandle, error) {
	notional := req.Quantity * req.ReferencePrice
	fee := s.feeRate * notional
	if fee < 0 {
		fee = 0
	}

	asset := QuoteAsset(req.Ticker)
	balance, err := s.ledger.Balance(ctx, req.UserID, asset)
	if err != nil {
		return nil, model.Transient(err)
	}

	switch req.Side {
	case model.Buy:
		cost := notional + fee
		if cost > balance {
			return nil, model.Constraint("insufficient balance: need %.4f have %.4f", cost, balance)
		}
		balance -= cost
	case model.Sell:
		balance += notional - fee
	}

	if balance < 0 {
		logger.Warn("simulated balance clamped to zero",
			logger.Pair("user_id", req.UserID),
			logger.Pair("asset", asset),
			logger.Pair("balance", balance))
		balance = 0
	}
	if err := s.ledger.SetBalance(ctx, req.UserID, asset, balance); err != nil {
		return nil, model.Transient(err)
	}

	rec := &entity.OrderRecord{
		UserID:         req.UserID,
		Ticker:         req.Ticker,
		Side:           string(req.Side),
		Status:         string(model.OrderFilled),
		IdempotencyKey: req.IdempotencyKey,
		ProviderID:     "sim-" + uuid.NewString(),
		RequestedQty:   req.Quantity,
		FilledQty:      req.Quantity,
		AvgFillPrice:   req.ReferencePrice,
		Fee:            fee,
		ReferencePrice: req.ReferencePrice,
		BarIndex:       req.BarIndex,
	}
	if err := s.store.Create(ctx, rec); err != nil {
		return nil, err
	}
	return &OrderHandle{Record: rec, Terminal: true}, nil
}
