package translator

import (
	"github.com/shopspring/decimal"
)

// ComputeStopLoss 由参考价与止损百分比推导止损触发价。
// 多头止损在参考价下方，空头在上方；价格统一按最小报价单位向下取整，
// 与数量取整保持同一保守约定。百分比为0表示未请求止损，返回0。
func ComputeStopLoss(side Side, referencePrice, stopLossPercent, priceTick float64) float64 {
	if stopLossPercent <= 0 || referencePrice <= 0 {
		return 0
	}

	ref := decimal.NewFromFloat(referencePrice)
	pct := decimal.NewFromFloat(stopLossPercent).Div(decimal.NewFromInt(100))

	var stop decimal.Decimal
	if side == SideBuy {
		stop = ref.Mul(decimal.NewFromInt(1).Sub(pct))
	} else {
		stop = ref.Mul(decimal.NewFromInt(1).Add(pct))
	}

	if priceTick > 0 {
		stop = floorToStep(stop, decimal.NewFromFloat(priceTick))
	}

	return stop.InexactFloat64()
}
