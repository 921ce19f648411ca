package reconcile

import (
	"context"
	"sync"
	"testing"

	"tradeflow/internal/dispatch"
	"tradeflow/internal/exchange"
	"tradeflow/internal/model"
	"tradeflow/internal/model/entity"
	"tradeflow/internal/strategy"
)

type scriptedExchange struct {
	mu    sync.Mutex
	fills map[string]*model.OrderFill
}

func (s *scriptedExchange) PlaceMarketOrder(ctx context.Context, req model.OrderRequest) (*model.OrderAck, error) {
	return &model.OrderAck{ProviderID: "x", Status: model.OrderPending}, nil
}

func (s *scriptedExchange) GetOrderStatus(ctx context.Context, providerID, ticker string) (*model.OrderFill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.fills[providerID]; ok {
		return f, nil
	}
	return &model.OrderFill{Status: model.OrderPending}, nil
}

func (s *scriptedExchange) GetBalance(ctx context.Context, asset string) (float64, error) {
	return 0, nil
}

func (s *scriptedExchange) setFill(providerID string, fill *model.OrderFill) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fills[providerID] = fill
}

func pendingRecord(id int64, side model.OrderSide, providerID string) *entity.OrderRecord {
	return &entity.OrderRecord{
		ID:             id,
		UserID:         "u1",
		Ticker:         "KRW-BTC",
		Side:           string(side),
		Status:         string(model.OrderPending),
		IdempotencyKey: model.IdempotencyKey("u1", "KRW-BTC", int(id), side),
		ProviderID:     providerID,
		RequestedQty:   0.5,
		ReferencePrice: 50000,
		BarIndex:       int(id),
	}
}

func newReconciler(store exchange.OrderStore, ex exchange.Exchange,
	positions dispatch.PositionStore, audit dispatch.AuditSink,
	pos *strategy.PositionState) *Reconciler {
	return New("u1", "KRW-BTC", 0, store, ex, positions, audit, &sync.Mutex{}, pos)
}

// 重启后在途买单被交易所确认成交，仓位按成交价重建
func TestPollFilledBuyOpensPosition(t *testing.T) {
	ctx := context.Background()
	store := exchange.NewMemoryOrderStore()
	positions := dispatch.NewMemoryPositionStore()
	audit := dispatch.NewMemoryAuditSink()
	ex := &scriptedExchange{fills: map[string]*model.OrderFill{}}
	pos := &strategy.PositionState{}

	store.Create(ctx, pendingRecord(50, model.Buy, "p-buy"))
	ex.setFill("p-buy", &model.OrderFill{Status: model.OrderFilled, FilledQty: 0.5, AvgPrice: 50100, Fee: 12.5})

	r := newReconciler(store, ex, positions, audit, pos)
	if err := r.Poll(ctx); err != nil {
		t.Fatal(err)
	}

	if !pos.HasPosition || pos.Qty != 0.5 || pos.EntryPrice != 50100 {
		t.Fatalf("position = %+v", pos)
	}
	rec, _ := store.Get(ctx, 50)
	if rec.Status != string(model.OrderFilled) || rec.AvgFillPrice != 50100 {
		t.Fatalf("record = %+v", rec)
	}
	prec, _ := positions.Read(ctx, "u1", "KRW-BTC")
	if prec == nil || !prec.HasPosition {
		t.Fatal("position not persisted")
	}
}

func TestPollFilledSellClosesPosition(t *testing.T) {
	ctx := context.Background()
	store := exchange.NewMemoryOrderStore()
	positions := dispatch.NewMemoryPositionStore()
	audit := dispatch.NewMemoryAuditSink()
	ex := &scriptedExchange{fills: map[string]*model.OrderFill{}}
	pos := &strategy.PositionState{}
	pos.Open(0.5, 50000, 10)

	store.Create(ctx, pendingRecord(80, model.Sell, "p-sell"))
	ex.setFill("p-sell", &model.OrderFill{Status: model.OrderFilled, FilledQty: 0.5, AvgPrice: 52000, Fee: 13})

	r := newReconciler(store, ex, positions, audit, pos)
	if err := r.Poll(ctx); err != nil {
		t.Fatal(err)
	}
	if pos.HasPosition || pos.Qty != 0 {
		t.Fatalf("position not closed: %+v", pos)
	}
}

func TestPollRejectedLeavesPositionUntouched(t *testing.T) {
	ctx := context.Background()
	store := exchange.NewMemoryOrderStore()
	positions := dispatch.NewMemoryPositionStore()
	audit := dispatch.NewMemoryAuditSink()
	ex := &scriptedExchange{fills: map[string]*model.OrderFill{}}
	pos := &strategy.PositionState{}

	store.Create(ctx, pendingRecord(60, model.Buy, "p-rej"))
	ex.setFill("p-rej", &model.OrderFill{Status: model.OrderRejected})

	r := newReconciler(store, ex, positions, audit, pos)
	if err := r.Poll(ctx); err != nil {
		t.Fatal(err)
	}

	if pos.HasPosition {
		t.Fatal("rejected order mutated position")
	}
	rec, _ := store.Get(ctx, 60)
	if rec.Status != string(model.OrderRejected) {
		t.Fatalf("record status = %s", rec.Status)
	}
	entries := audit.Entries()
	if len(entries) != 1 || entries[0].Reason != "order_rejected" {
		t.Fatalf("audit entries = %+v", entries)
	}
}

// 同一笔成交被轮询两次不会重复推进仓位
func TestPollIdempotent(t *testing.T) {
	ctx := context.Background()
	store := exchange.NewMemoryOrderStore()
	positions := dispatch.NewMemoryPositionStore()
	audit := dispatch.NewMemoryAuditSink()
	ex := &scriptedExchange{fills: map[string]*model.OrderFill{}}
	pos := &strategy.PositionState{}

	store.Create(ctx, pendingRecord(50, model.Buy, "p-buy"))
	ex.setFill("p-buy", &model.OrderFill{Status: model.OrderFilled, FilledQty: 0.5, AvgPrice: 50100, Fee: 12.5})

	r := newReconciler(store, ex, positions, audit, pos)
	if err := r.Poll(ctx); err != nil {
		t.Fatal(err)
	}
	barsHeld := pos.BarsHeld
	pos.Track(51000, 0.01)

	// 第二轮：记录已终结，不在ListPending里
	if err := r.Poll(ctx); err != nil {
		t.Fatal(err)
	}
	if pos.BarsHeld != barsHeld+1 {
		t.Fatalf("position re-opened by second poll: %+v", pos)
	}
}

func TestPollKeepsPendingPending(t *testing.T) {
	ctx := context.Background()
	store := exchange.NewMemoryOrderStore()
	positions := dispatch.NewMemoryPositionStore()
	audit := dispatch.NewMemoryAuditSink()
	ex := &scriptedExchange{fills: map[string]*model.OrderFill{}}
	pos := &strategy.PositionState{}

	store.Create(ctx, pendingRecord(50, model.Buy, "p-wait"))

	r := newReconciler(store, ex, positions, audit, pos)
	if err := r.Poll(ctx); err != nil {
		t.Fatal(err)
	}
	rec, _ := store.Get(ctx, 50)
	if rec.Status != string(model.OrderPending) {
		t.Fatalf("status = %s, want PENDING", rec.Status)
	}
	if n, _ := r.PendingCount(ctx); n != 1 {
		t.Fatalf("pending count = %d", n)
	}
}

// 把终态记录再次混进待结算列表，模拟并发结算方已经赢得守卫更新
type staleListStore struct {
	*exchange.MemoryOrderStore
	stale []*entity.OrderRecord
}

func (s *staleListStore) ListPending(ctx context.Context, userID string) ([]*entity.OrderRecord, error) {
	return s.stale, nil
}

// 守卫更新没有命中行时，成交不允许二次推进仓位
func TestPollStaleListingNoDoubleApply(t *testing.T) {
	ctx := context.Background()
	store := exchange.NewMemoryOrderStore()
	positions := dispatch.NewMemoryPositionStore()
	audit := dispatch.NewMemoryAuditSink()
	ex := &scriptedExchange{fills: map[string]*model.OrderFill{}}
	pos := &strategy.PositionState{}

	rec := pendingRecord(50, model.Buy, "p-buy")
	store.Create(ctx, rec)
	ex.setFill("p-buy", &model.OrderFill{Status: model.OrderFilled, FilledQty: 0.5, AvgPrice: 50100})

	// 第一次正常结算开仓
	r := newReconciler(store, ex, positions, audit, pos)
	if err := r.Poll(ctx); err != nil {
		t.Fatal(err)
	}
	if !pos.HasPosition {
		t.Fatal("position not opened by first settle")
	}

	// 仓位随后被平掉，但一份过期的待结算列表仍含这笔已终态订单
	pos.Close()
	stale := &staleListStore{MemoryOrderStore: store, stale: []*entity.OrderRecord{pendingRecord(50, model.Buy, "p-buy")}}
	r2 := newReconciler(stale, ex, positions, audit, pos)
	if err := r2.Poll(ctx); err != nil {
		t.Fatal(err)
	}
	if pos.HasPosition {
		t.Fatal("stale listing reopened position")
	}
}
