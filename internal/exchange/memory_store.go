package exchange

import (
	"context"
	"sort"
	"sync"
	"time"

	"tradeflow/internal/model"
	"tradeflow/internal/model/entity"
	"tradeflow/utils"
)

// 内存实现，测试和本地联调用，语义和MySQL实现保持一致

type MemoryOrderStore struct {
	mu     sync.Mutex
	orders map[int64]*entity.OrderRecord
	keys   map[string]int64
}

func NewMemoryOrderStore() *MemoryOrderStore {
	return &MemoryOrderStore{
		orders: make(map[int64]*entity.OrderRecord),
		keys:   make(map[string]int64),
	}
}

func (m *MemoryOrderStore) Create(ctx context.Context, rec *entity.OrderRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == 0 {
		rec.ID = utils.NewID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	cp := *rec
	m.orders[rec.ID] = &cp
	m.keys[rec.IdempotencyKey] = rec.ID
	return nil
}

// Update 和MySQL实现一样只允许PENDING推进到终态
func (m *MemoryOrderStore) Update(ctx context.Context, rec *entity.OrderRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.orders[rec.ID]
	if !ok || cur.Status != string(model.OrderPending) {
		return false, nil
	}
	cur.Status = rec.Status
	cur.FilledQty = rec.FilledQty
	cur.AvgFillPrice = rec.AvgFillPrice
	cur.Fee = rec.Fee
	return true, nil
}

func (m *MemoryOrderStore) Get(ctx context.Context, id int64) (*entity.OrderRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (m *MemoryOrderStore) ExistsKey(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.keys[key]
	return ok, nil
}

func (m *MemoryOrderStore) ListPending(ctx context.Context, userID string) ([]*entity.OrderRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var recs []*entity.OrderRecord
	for _, rec := range m.orders {
		if rec.UserID == userID && rec.Status == string(model.OrderPending) {
			cp := *rec
			recs = append(recs, &cp)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
	return recs, nil
}

func (m *MemoryOrderStore) CountPending(ctx context.Context, userID, ticker string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, rec := range m.orders {
		if rec.UserID == userID && rec.Ticker == ticker && rec.Status == string(model.OrderPending) {
			count++
		}
	}
	return count, nil
}

func (m *MemoryOrderStore) LastFilledBuy(ctx context.Context, userID, ticker string) (*entity.OrderRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var last *entity.OrderRecord
	for _, rec := range m.orders {
		if rec.UserID == userID && rec.Ticker == ticker &&
			rec.Side == string(model.Buy) && rec.Status == string(model.OrderFilled) {
			if last == nil || rec.ID > last.ID {
				last = rec
			}
		}
	}
	if last == nil {
		return nil, nil
	}
	cp := *last
	return &cp, nil
}

type MemoryLedger struct {
	mu       sync.Mutex
	balances map[string]float64
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{balances: make(map[string]float64)}
}

func (m *MemoryLedger) Balance(ctx context.Context, userID, asset string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[userID+"|"+asset], nil
}

func (m *MemoryLedger) SetBalance(ctx context.Context, userID, asset string, balance float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[userID+"|"+asset] = balance
	return nil
}
