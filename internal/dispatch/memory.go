package dispatch

import (
	"context"
	"sync"

	"tradeflow/internal/model/entity"
	"tradeflow/utils"
)

// 内存实现，测试和本地联调用

type MemoryPositionStore struct {
	mu   sync.Mutex
	recs map[string]*entity.PositionRecord
}

func NewMemoryPositionStore() *MemoryPositionStore {
	return &MemoryPositionStore{recs: make(map[string]*entity.PositionRecord)}
}

func (m *MemoryPositionStore) Read(ctx context.Context, userID, ticker string) (*entity.PositionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[userID+"|"+ticker]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (m *MemoryPositionStore) Write(ctx context.Context, rec *entity.PositionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == 0 {
		rec.ID = utils.NewID()
	}
	cp := *rec
	m.recs[rec.UserID+"|"+rec.Ticker] = &cp
	return nil
}

type MemoryAuditSink struct {
	mu      sync.Mutex
	entries []*entity.AuditEntry
}

func NewMemoryAuditSink() *MemoryAuditSink {
	return &MemoryAuditSink{}
}

func (m *MemoryAuditSink) Record(ctx context.Context, entry *entity.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *entry
	m.entries = append(m.entries, &cp)
	return nil
}

// Entries 返回副本切片，测试断言用
func (m *MemoryAuditSink) Entries() []*entity.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entity.AuditEntry, len(m.entries))
	copy(out, m.entries)
	return out
}
