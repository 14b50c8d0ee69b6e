package translator

import (
	"strings"
)

const (
	minPercent = 1.0
	maxPercent = 100.0

	minLeverage = 1
	maxLeverage = 100

	// 贴近现价的止损会在滑点内立即触发，按源策略抬到最小距离。
	minStopLossPercent = 0.1

	defaultReason = "signal"
)

// ValidatePayload 校验原始负载并按缺省参数归一化为 Alert。
// 字段级错误以 *ValidationError 形式返回，绝不静默替换非法值。
func ValidatePayload(p AlertPayload, defaults Defaults) (Alert, error) {
	alert := Alert{
		Symbol:          strings.ToUpper(strings.TrimSpace(p.Symbol)),
		Leverage:        defaults.Leverage,
		StopLossPercent: defaults.StopLossPercent,
		Reason:          strings.TrimSpace(p.Reason),
	}

	if alert.Symbol == "" {
		alert.Symbol = defaults.Symbol
	}
	if alert.Reason == "" {
		alert.Reason = defaultReason
	}

	action, err := parseAction(p.Action)
	if err != nil {
		return Alert{}, err
	}
	alert.Action = action

	// 显式数量优先于百分比模式。
	switch {
	case p.Quantity != nil:
		if *p.Quantity <= 0 {
			return Alert{}, newValidationError("quantity", "must be greater than zero")
		}
		alert.Mode = SizingModeQuantity
		alert.Quantity = *p.Quantity
	case p.PercentOfBalance != nil:
		alert.Mode = SizingModePercent
		alert.PercentOfBalance = clampFloat(*p.PercentOfBalance, minPercent, maxPercent)
	default:
		if action != ActionClose {
			return Alert{}, newValidationError("quantity", "either quantity or percentOfBalance is required")
		}
	}

	if p.Leverage != nil {
		alert.Leverage = clampInt(*p.Leverage, minLeverage, maxLeverage)
	}

	if p.StopLossPercent != nil {
		if *p.StopLossPercent < 0 {
			return Alert{}, newValidationError("stopLossPercent", "must be >= 0")
		}
		alert.StopLossPercent = *p.StopLossPercent
	}
	if alert.StopLossPercent > 0 && alert.StopLossPercent < minStopLossPercent {
		alert.StopLossPercent = minStopLossPercent
	}

	return alert, nil
}

func parseAction(raw string) (Action, error) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	switch normalized {
	case "":
		return "", newValidationError("action", "is required")
	case "BUY":
		return ActionBuy, nil
	case "SELL":
		return ActionSell, nil
	case "CLOSE", "CLOSE_LONG", "CLOSE_SHORT":
		return ActionClose, nil
	default:
		return "", newValidationError("action", "must be one of BUY, SELL, CLOSE")
	}
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
