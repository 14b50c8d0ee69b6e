package translator

import (
	"errors"
	"fmt"
)

// ErrInsufficientSize 表示按约束取整后的数量不足最小下单量，
// 不应触达交易所。
var ErrInsufficientSize = errors.New("computed quantity below minimum order size")

// ValidationError 描述信号负载中具体哪个字段不合法。
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid field %q: %s", e.Field, e.Reason)
}

func newValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidationError 判断错误是否为负载校验失败。
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
