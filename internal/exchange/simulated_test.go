package exchange

import (
	"context"
	"math"
	"testing"

	"tradeflow/internal/model"
)

func buyReq(userID string, qty, price float64, barIndex int) model.OrderRequest {
	return model.OrderRequest{
		UserID:         userID,
		Ticker:         "KRW-BTC",
		Side:           model.Buy,
		Quantity:       qty,
		ReferencePrice: price,
		BarIndex:       barIndex,
		IdempotencyKey: model.IdempotencyKey(userID, "KRW-BTC", barIndex, model.Buy),
	}
}

func TestSimulatedBuyFill(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryOrderStore()
	ledger := NewMemoryLedger()
	ledger.SetBalance(ctx, "u1", "KRW", 1000000)

	exec := NewSimulatedExecutor(store, ledger, 0.0005)
	h, err := exec.Execute(ctx, buyReq("u1", 0.01, 50000000, 50))
	if err != nil {
		t.Fatal(err)
	}
	if !h.Terminal {
		t.Fatal("simulated fill not terminal")
	}
	if h.Record.Status != string(model.OrderFilled) {
		t.Fatalf("status = %s, want FILLED", h.Record.Status)
	}
	if h.Record.AvgFillPrice != 50000000 {
		t.Errorf("avg fill price = %f", h.Record.AvgFillPrice)
	}

	// notional=500000 fee=250 余额扣减500250
	wantFee := 0.0005 * 0.01 * 50000000
	if math.Abs(h.Record.Fee-wantFee) > 1e-9 {
		t.Errorf("fee = %f, want %f", h.Record.Fee, wantFee)
	}
	bal, _ := ledger.Balance(ctx, "u1", "KRW")
	if math.Abs(bal-(1000000-500000-wantFee)) > 1e-6 {
		t.Errorf("balance = %f", bal)
	}
}

func TestSimulatedSellCreditsBalance(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryOrderStore()
	ledger := NewMemoryLedger()
	ledger.SetBalance(ctx, "u1", "KRW", 1000)

	exec := NewSimulatedExecutor(store, ledger, 0.0005)
	req := buyReq("u1", 0.01, 50000000, 80)
	req.Side = model.Sell
	req.IdempotencyKey = model.IdempotencyKey("u1", "KRW-BTC", 80, model.Sell)

	h, err := exec.Execute(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if h.Record.Status != string(model.OrderFilled) {
		t.Fatalf("status = %s", h.Record.Status)
	}
	bal, _ := ledger.Balance(ctx, "u1", "KRW")
	want := 1000 + 500000 - 0.0005*500000
	if math.Abs(bal-want) > 1e-6 {
		t.Errorf("balance = %f, want %f", bal, want)
	}
}

func TestSimulatedInsufficientBalance(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryOrderStore()
	ledger := NewMemoryLedger()
	ledger.SetBalance(ctx, "u1", "KRW", 100)

	exec := NewSimulatedExecutor(store, ledger, 0.0005)
	_, err := exec.Execute(ctx, buyReq("u1", 0.01, 50000000, 50))
	if !model.IsConstraintViolation(err) {
		t.Fatalf("err = %v, want ConstraintViolation", err)
	}

	// 被拒的请求不落单
	if exists, _ := store.ExistsKey(ctx, model.IdempotencyKey("u1", "KRW-BTC", 50, model.Buy)); exists {
		t.Fatal("rejected request created a record")
	}
}

func TestSimulatedClampNegativeBalance(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryOrderStore()
	ledger := NewMemoryLedger()
	// 构造一个舍入残留的负余额
	ledger.SetBalance(ctx, "u1", "KRW", -1e-10)

	exec := NewSimulatedExecutor(store, ledger, 0.0005)
	req := buyReq("u1", 0, 50000000, 1)
	req.Side = model.Sell
	if _, err := exec.Execute(ctx, req); err != nil {
		t.Fatal(err)
	}
	bal, _ := ledger.Balance(ctx, "u1", "KRW")
	if bal != 0 {
		t.Errorf("balance = %g, want clamped 0", bal)
	}
}

type stubExchange struct {
	acks   []*model.OrderAck
	fills  map[string]*model.OrderFill
	placed []model.OrderRequest
}

func (s *stubExchange) PlaceMarketOrder(ctx context.Context, req model.OrderRequest) (*model.OrderAck, error) {
	s.placed = append(s.placed, req)
	ack := s.acks[0]
	if len(s.acks) > 1 {
		s.acks = s.acks[1:]
	}
	return ack, nil
}

func (s *stubExchange) GetOrderStatus(ctx context.Context, providerID, ticker string) (*model.OrderFill, error) {
	if f, ok := s.fills[providerID]; ok {
		return f, nil
	}
	return &model.OrderFill{Status: model.OrderPending}, nil
}

func (s *stubExchange) GetBalance(ctx context.Context, asset string) (float64, error) {
	return 0, nil
}

func TestLiveExecutorPendingRecord(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryOrderStore()
	ex := &stubExchange{acks: []*model.OrderAck{{ProviderID: "upbit-1", Status: model.OrderPending}}}

	exec := NewLiveExecutor(store, ex)
	h, err := exec.Execute(ctx, buyReq("u1", 0.01, 50000000, 50))
	if err != nil {
		t.Fatal(err)
	}
	if h.Terminal {
		t.Fatal("live execute must not be terminal")
	}
	if h.Record.Status != string(model.OrderPending) || h.Record.ProviderID != "upbit-1" {
		t.Fatalf("record = %+v", h.Record)
	}
	if n, _ := store.CountPending(ctx, "u1", "KRW-BTC"); n != 1 {
		t.Fatalf("pending count = %d, want 1", n)
	}
}

func TestQuoteAsset(t *testing.T) {
	if got := QuoteAsset("KRW-BTC"); got != "KRW" {
		t.Errorf("QuoteAsset = %q", got)
	}
	if got := QuoteAsset("KRW"); got != "KRW" {
		t.Errorf("QuoteAsset fallback = %q", got)
	}
}
