package model

import (
	"errors"
	"fmt"
)

// 错误分类：瞬时错误可重试，约束冲突本地拒绝不重试，
// 状态损坏对该用户致命，由监管器转入FAILED

// ErrInsufficientData K线窗口长度不足以计算指标，本周期跳过评估
var ErrInsufficientData = errors.New("insufficient bars for indicator window")

// ErrStateCorruption 仓位状态和订单历史对不上，不做自动修复
var ErrStateCorruption = errors.New("position state inconsistent with order history")

// ConstraintViolation 本地约束冲突（余额不足、重复在途订单、低于最小下单额）
type ConstraintViolation struct {
	Reason string
}

func (e *ConstraintViolation) Error() string {
	return "constraint violation: " + e.Reason
}

func Constraint(format string, args ...interface{}) error {
	return &ConstraintViolation{Reason: fmt.Sprintf(format, args...)}
}

func IsConstraintViolation(err error) bool {
	var cv *ConstraintViolation
	return errors.As(err, &cv)
}

// TransientError 网络超时、限流等可重试错误
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return "transient: " + e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
