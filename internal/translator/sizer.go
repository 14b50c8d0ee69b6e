package translator

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"tv-bridge/internal/exchange"
)

// 交易所会拒绝精度溢出的数值参数，统一截断到10位小数。
const quantityScale = 10

// SizingInput 聚合一次数量计算所需的全部输入。
type SizingInput struct {
	Mode             SizingMode
	Quantity         float64 // Mode 为 quantity 时的绝对数量
	PercentOfBalance float64 // Mode 为 percent 时的权益百分比
	Balance          float64
	LastPrice        float64
	Leverage         int
	Filters          exchange.InstrumentFilters
}

// ComputeQuantity 计算下单数量。
// 全程使用十进制运算避免二进制浮点漂移；按步长向下取整，宁可少买绝不超买。
// 取整后不足最小下单量时返回0，调用方必须视为"规模不足"而非继续下单。
func ComputeQuantity(in SizingInput) (float64, error) {
	if in.Filters.LotStep <= 0 {
		return 0, errors.New("sizer: lot step must be positive")
	}

	var raw decimal.Decimal
	switch in.Mode {
	case SizingModeQuantity:
		raw = decimal.NewFromFloat(in.Quantity)
	case SizingModePercent:
		if in.LastPrice <= 0 {
			return 0, errors.New("sizer: last price must be positive")
		}
		if in.Leverage < 1 {
			return 0, errors.New("sizer: leverage must be >= 1")
		}
		// notional = balance * pct/100 * leverage；数量 = notional / price
		notional := decimal.NewFromFloat(in.Balance).
			Mul(decimal.NewFromFloat(in.PercentOfBalance)).
			Div(decimal.NewFromInt(100)).
			Mul(decimal.NewFromInt(int64(in.Leverage)))
		raw = notional.Div(decimal.NewFromFloat(in.LastPrice))
	default:
		return 0, fmt.Errorf("sizer: unknown sizing mode %q", in.Mode)
	}

	rounded := floorToStep(raw, decimal.NewFromFloat(in.Filters.LotStep))

	if in.Filters.MinQuantity > 0 && rounded.LessThan(decimal.NewFromFloat(in.Filters.MinQuantity)) {
		return 0, nil
	}
	if rounded.Sign() <= 0 {
		return 0, nil
	}

	return rounded.Truncate(quantityScale).InexactFloat64(), nil
}

// floorToStep 将 value 向下取整到 step 的整数倍。
func floorToStep(value, step decimal.Decimal) decimal.Decimal {
	if step.Sign() <= 0 {
		return value
	}
	return value.Div(step).Floor().Mul(step)
}
