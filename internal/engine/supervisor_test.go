package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tradeflow/internal/dispatch"
	"tradeflow/internal/exchange"
	"tradeflow/internal/model"
)

// supFeed 固定节拍出bar收盘信号，按ticker脚本化返回错误或预热中
type supFeed struct {
	mu   sync.Mutex
	fail map[string]error
}

func newSupFeed() *supFeed {
	return &supFeed{fail: make(map[string]error)}
}

func (f *supFeed) setFail(ticker string, err error) {
	f.mu.Lock()
	f.fail[ticker] = err
	f.mu.Unlock()
}

func (f *supFeed) LatestBars(ctx context.Context, ticker, interval string, count int) ([]model.Bar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[ticker]; err != nil {
		return nil, err
	}
	return nil, model.ErrInsufficientData
}

func (f *supFeed) WaitBarClose(ctx context.Context, ticker, interval string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Millisecond):
		return nil
	}
}

func newSupervisorEnv() (*Supervisor, *exchange.MemoryLedger, *supFeed) {
	feed := newSupFeed()
	ledger := exchange.NewMemoryLedger()
	sup := NewSupervisor(testEngineConfig(), SupervisorDeps{
		Feed:      feed,
		Store:     exchange.NewMemoryOrderStore(),
		Ledger:    ledger,
		Positions: dispatch.NewMemoryPositionStore(),
		Audit:     dispatch.NewMemoryAuditSink(),
	})
	return sup, ledger, feed
}

func supParams(ticker string) model.StrategyParams {
	p := model.DefaultParams()
	p.Ticker = ticker
	p.Interval = "minute1"
	return p
}

func waitState(t *testing.T, sup *Supervisor, userID string, want EngineState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	var last EngineState
	for time.Now().Before(deadline) {
		st, err := sup.Status(userID)
		if err != nil {
			t.Fatal(err)
		}
		last = st.State
		if last == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("state = %s, want %s", last, want)
}

func TestSupervisorLifecycle(t *testing.T) {
	sup, _, _ := newSupervisorEnv()

	if err := sup.Start("u1", supParams("KRW-BTC")); err != nil {
		t.Fatal(err)
	}
	waitState(t, sup, "u1", StateRunning)

	// 运行中重复启动被拒
	if err := sup.Start("u1", supParams("KRW-BTC")); !model.IsConstraintViolation(err) {
		t.Fatalf("double start err = %v", err)
	}

	if err := sup.Stop("u1"); err != nil {
		t.Fatal(err)
	}
	waitState(t, sup, "u1", StateStopped)

	// 停止后可以再次启动
	if err := sup.Start("u1", supParams("KRW-BTC")); err != nil {
		t.Fatal(err)
	}
	waitState(t, sup, "u1", StateRunning)
	sup.StopAll()
	waitState(t, sup, "u1", StateStopped)
}

// 单用户失败只影响该用户
func TestSupervisorFaultIsolation(t *testing.T) {
	sup, _, feed := newSupervisorEnv()
	feed.setFail("KRW-BAD", errors.New("upstream down"))

	if err := sup.Start("u-good", supParams("KRW-BTC")); err != nil {
		t.Fatal(err)
	}
	if err := sup.Start("u-bad", supParams("KRW-BAD")); err != nil {
		t.Fatal(err)
	}

	waitState(t, sup, "u-bad", StateFailed)
	st, _ := sup.Status("u-bad")
	if st.LastError == "" {
		t.Error("failed status carries no error")
	}

	// 另一个用户不受影响
	gst, _ := sup.Status("u-good")
	if gst.State != StateRunning {
		t.Fatalf("good user state = %s", gst.State)
	}
	if gst.LastHeartbeat.IsZero() {
		t.Error("running user has no heartbeat")
	}

	// FAILED用户的Stop被拒，Start可以重新拉起
	if err := sup.Stop("u-bad"); !model.IsConstraintViolation(err) {
		t.Fatalf("stop failed user err = %v", err)
	}
	feed.setFail("KRW-BAD", nil)
	if err := sup.Start("u-bad", supParams("KRW-BAD")); err != nil {
		t.Fatal(err)
	}
	waitState(t, sup, "u-bad", StateRunning)
	sup.StopAll()
}

func TestSupervisorRejectsInvalidParams(t *testing.T) {
	sup, _, _ := newSupervisorEnv()

	p := supParams("") // ticker缺失
	if err := sup.Start("u1", p); err == nil {
		t.Fatal("missing ticker accepted")
	}

	p = supParams("KRW-BTC")
	p.StopLossPct = 0.05
	p.TakeProfitPct = 0.03
	if err := sup.Start("u1", p); err == nil {
		t.Fatal("stop_loss >= take_profit accepted")
	}
}

func TestSupervisorLiveNeedsExchange(t *testing.T) {
	sup, _, _ := newSupervisorEnv()
	p := supParams("KRW-BTC")
	p.Mode = model.ModeLive
	if err := sup.Start("u1", p); !model.IsConstraintViolation(err) {
		t.Fatalf("err = %v, want ConstraintViolation", err)
	}
}

func TestSupervisorSeedsVirtualAccount(t *testing.T) {
	sup, ledger, _ := newSupervisorEnv()
	if err := sup.Start("u1", supParams("KRW-BTC")); err != nil {
		t.Fatal(err)
	}
	bal, _ := ledger.Balance(context.Background(), "u1", "KRW")
	if bal != 1000000 {
		t.Fatalf("seeded balance = %f", bal)
	}
	sup.StopAll()
}

func TestSupervisorRestart(t *testing.T) {
	sup, _, _ := newSupervisorEnv()
	if err := sup.Start("u1", supParams("KRW-BTC")); err != nil {
		t.Fatal(err)
	}
	waitState(t, sup, "u1", StateRunning)

	if err := sup.Restart("u1"); err != nil {
		t.Fatal(err)
	}
	waitState(t, sup, "u1", StateRunning)
	sup.StopAll()
}

func TestSupervisorStatusUnknownUser(t *testing.T) {
	sup, _, _ := newSupervisorEnv()
	st, err := sup.Status("nobody")
	if err != nil || st.State != StateStopped {
		t.Fatalf("status = %+v err = %v", st, err)
	}
}
