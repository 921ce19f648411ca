package exchange

import (
	"context"

	"tradeflow/internal/model"
	"tradeflow/internal/model/entity"
	"tradeflow/pkg/logger"
)

// 实盘执行器：提交市价单后立刻落一条PENDING记录并返回
// 从不阻塞tick循环等待成交，终态由对账器轮询推进

type LiveExecutor struct {
	store OrderStore
	ex    Exchange
}

func NewLiveExecutor(store OrderStore, ex Exchange) *LiveExecutor {
	return &LiveExecutor{store: store, ex: ex}
}

func (l *LiveExecutor) Execute(ctx context.Context, req model.OrderRequest) (*OrderHandle, error) {
	ack, err := l.ex.PlaceMarketOrder(ctx, req)
	if err != nil {
		// 网络超时、限流等保持瞬时分类走重试
		if model.IsTransient(err) {
			return nil, err
		}
		// 交易所同步拒单是终态，落REJECTED记录，仓位保持下单前状态
		rec := &entity.OrderRecord{
			UserID:         req.UserID,
			Ticker:         req.Ticker,
			Side:           string(req.Side),
			Status:         string(model.OrderRejected),
			IdempotencyKey: req.IdempotencyKey,
			RequestedQty:   req.Quantity,
			ReferencePrice: req.ReferencePrice,
			BarIndex:       req.BarIndex,
			Reason:         err.Error(),
		}
		if cerr := l.store.Create(ctx, rec); cerr != nil {
			return nil, cerr
		}
		logger.Warn("order rejected by exchange",
			logger.Pair("user_id", req.UserID),
			logger.Pair("side", string(req.Side)),
			logger.Pair("err", err.Error()))
		return &OrderHandle{Record: rec, Terminal: true}, nil
	}

	rec := &entity.OrderRecord{
		UserID:         req.UserID,
		Ticker:         req.Ticker,
		Side:           string(req.Side),
		Status:         string(model.OrderPending),
		IdempotencyKey: req.IdempotencyKey,
		ProviderID:     ack.ProviderID,
		RequestedQty:   req.Quantity,
		ReferencePrice: req.ReferencePrice,
		BarIndex:       req.BarIndex,
	}
	if err := l.store.Create(ctx, rec); err != nil {
		// 下单已受理但本地记录失败，留日志供人工对账
		logger.Error("order accepted but record create failed",
			logger.Pair("user_id", req.UserID),
			logger.Pair("provider_id", ack.ProviderID),
			logger.Pair("err", err.Error()))
		return nil, err
	}
	return &OrderHandle{Record: rec, Terminal: false}, nil
}
