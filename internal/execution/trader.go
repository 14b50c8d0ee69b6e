package execution

import (
	"context"

	"tv-bridge/internal/translator"
)

// Trader 抽象执行器接口，方便上层在测试中替换真实下单。
type Trader interface {
	Execute(ctx context.Context, intent translator.OrderIntent) (Result, error)
}

var _ Trader = (*Executor)(nil)
