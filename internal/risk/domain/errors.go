package domain

import (
	"context"
	"errors"
	"fmt"
)

// ErrTimeBudgetExceeded 请求级时间预算耗尽（硬超时），包装 context.DeadlineExceeded
// 与蒙特卡洛截断不同：截断仍返回带警告的有效结果，此错误表示什么都没拿到。
var ErrTimeBudgetExceeded = fmt.Errorf("risk calculation exceeded the request time budget: %w", context.DeadlineExceeded)

// ValidationError 调用方请求不合法，在任何计算开始前返回
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ComputationError 正则化之后仍然失败的数值错误（病态输入）
// 与 ValidationError 严格区分：前者是引擎算不动，后者是请求本身不合法。
type ComputationError struct {
	Stage string
	Err   error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("risk computation failed at %s: %v", e.Stage, e.Err)
}

func (e *ComputationError) Unwrap() error {
	return e.Err
}

// IsValidation 判断是否为请求校验错误
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsComputation 判断是否为数值计算错误
func IsComputation(err error) bool {
	var ce *ComputationError
	return errors.As(err, &ce)
}
