package translator

// Action 表示信号指令。
type Action string

const (
	ActionBuy   Action = "BUY"
	ActionSell  Action = "SELL"
	ActionClose Action = "CLOSE"
)

// Side 表示下单方向。
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Opposite 返回反方向。
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// SizingMode 表示仓位规模的来源。
type SizingMode string

const (
	// SizingModeQuantity 直接使用信号给出的绝对数量。
	SizingModeQuantity SizingMode = "quantity"
	// SizingModePercent 按可用权益的百分比乘以杠杆折算数量。
	SizingModePercent SizingMode = "percent"
)

// AlertPayload 为入站告警的原始 JSON 形态，字段均不可信。
// 指针字段用于区分"未提供"与零值。
type AlertPayload struct {
	Symbol           string   `json:"symbol"`
	Action           string   `json:"action"`
	Quantity         *float64 `json:"quantity"`
	PercentOfBalance *float64 `json:"percentOfBalance"`
	Leverage         *int     `json:"leverage"`
	StopLossPercent  *float64 `json:"stopLossPercent"`
	Reason           string   `json:"reason"`
}

// Alert 为校验后的信号。
type Alert struct {
	Symbol           string
	Action           Action
	Mode             SizingMode
	Quantity         float64
	PercentOfBalance float64
	Leverage         int
	StopLossPercent  float64
	Reason           string
}

// Defaults 提供缺省交易参数，来自启动配置。
type Defaults struct {
	Symbol          string
	Leverage        int
	StopLossPercent float64
}

// OrderIntent 为翻译结果，交由执行器消费。
// Close 为真时数量与方向由执行器按当前持仓确定。
type OrderIntent struct {
	Symbol        string
	Side          Side
	Quantity      float64
	StopLossPrice float64
	ReduceOnly    bool
	Close         bool
	Leverage      int
	Reason        string
}
