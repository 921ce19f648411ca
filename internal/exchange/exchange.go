package exchange

import (
	"context"
	"strings"

	"tradeflow/internal/model"
	"tradeflow/internal/model/entity"
)

// Exchange 交易所协作方端口，实盘实现走HTTP，测试用桩实现
type Exchange interface {
	// 市价下单，返回服务端订单号受理回执
	PlaceMarketOrder(ctx context.Context, req model.OrderRequest) (*model.OrderAck, error)
	// 查询订单执行情况，对账器轮询用
	GetOrderStatus(ctx context.Context, providerID, ticker string) (*model.OrderFill, error)
	// 查询可用余额
	GetBalance(ctx context.Context, asset string) (float64, error)
}

// BalanceSource 可用余额查询端口，下单前的头寸折算用
// 模拟模式读虚拟账本，实盘模式查交易所
type BalanceSource interface {
	Balance(ctx context.Context, userID, asset string) (float64, error)
}

// Ledger 虚拟账本，模拟执行器读写，单次调用原子
type Ledger interface {
	BalanceSource
	SetBalance(ctx context.Context, userID, asset string, balance float64) error
}

// ExchangeBalance 把交易所余额查询适配成BalanceSource
// 实盘余额由交易所托管，userID在这里没有意义
type ExchangeBalance struct {
	ex Exchange
}

func NewExchangeBalance(ex Exchange) *ExchangeBalance {
	return &ExchangeBalance{ex: ex}
}

func (e *ExchangeBalance) Balance(ctx context.Context, _ string, asset string) (float64, error) {
	return e.ex.GetBalance(ctx, asset)
}

// OrderStore 订单记录存储，线上走MySQL，测试走内存实现
type OrderStore interface {
	Create(ctx context.Context, rec *entity.OrderRecord) error
	// Update 只允许PENDING推进到终态，返回是否真的更新了行
	Update(ctx context.Context, rec *entity.OrderRecord) (bool, error)
	Get(ctx context.Context, id int64) (*entity.OrderRecord, error)
	ExistsKey(ctx context.Context, key string) (bool, error)
	ListPending(ctx context.Context, userID string) ([]*entity.OrderRecord, error)
	CountPending(ctx context.Context, userID, ticker string) (int, error)
	LastFilledBuy(ctx context.Context, userID, ticker string) (*entity.OrderRecord, error)
}

// OrderHandle 执行结果：模拟执行立即终态，实盘执行返回在途句柄由对账器收尾
type OrderHandle struct {
	Record   *entity.OrderRecord
	Terminal bool
}

// Executor 执行适配器，模拟和实盘共用同一契约
type Executor interface {
	Execute(ctx context.Context, req model.OrderRequest) (*OrderHandle, error)
}

// QuoteAsset 从交易对解析计价货币，"KRW-BTC"返回"KRW"
func QuoteAsset(ticker string) string {
	if i := strings.Index(ticker, "-"); i > 0 {
		return ticker[:i]
	}
	return ticker
}
