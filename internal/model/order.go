package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

type OrderSide string

const (
	Buy  OrderSide = "buy"
	Sell OrderSide = "sell"
)

// OrderStatusType 订单状态，PENDING为唯一的非终态
type OrderStatusType string

const (
	OrderPending  OrderStatusType = "PENDING"
	OrderFilled   OrderStatusType = "FILLED"
	OrderRejected OrderStatusType = "REJECTED"
	OrderCanceled OrderStatusType = "CANCELED"
)

// Terminal 是否终态，终态后记录不可再变更
func (s OrderStatusType) Terminal() bool {
	return s == OrderFilled || s == OrderRejected || s == OrderCanceled
}

// OrderRequest 派单器根据决策构造的下单请求
type OrderRequest struct {
	UserID         string
	Ticker         string
	Side           OrderSide
	Quantity       float64
	ReferencePrice float64
	BarIndex       int
	IdempotencyKey string
}

// IdempotencyKey 同一用户同一bar同一方向只允许一笔订单，重试也一样
func IdempotencyKey(userID, ticker string, barIndex int, side OrderSide) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%s", userID, ticker, barIndex, side)))
	return hex.EncodeToString(sum[:])
}

// OrderAck 交易所受理回执
type OrderAck struct {
	ProviderID string
	Status     OrderStatusType
}

// OrderFill 交易所侧的订单执行情况
type OrderFill struct {
	Status    OrderStatusType
	FilledQty float64
	AvgPrice  float64
	Fee       float64
}
