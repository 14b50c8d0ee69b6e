package exchange

import "time"

// PositionSide 表示持仓方向。
type PositionSide string

const (
	PositionSideLong  PositionSide = "LONG"
	PositionSideShort PositionSide = "SHORT"
	// PositionSideFlat 表示该合约当前无持仓。
	PositionSideFlat PositionSide = ""
)

// InstrumentFilters 描述交易所对单个合约的下单约束。
// 取自市场元数据，进程生命周期内按合约缓存。
type InstrumentFilters struct {
	Symbol      string
	LotStep     float64
	MinQuantity float64
	PriceTick   float64
}

// Position 表示单个合约的净持仓快照。
type Position struct {
	Symbol        string
	Side          PositionSide
	Size          float64
	EntryPrice    float64
	MarkPrice     float64
	UnrealizedPnl float64
	Leverage      float64
	Timestamp     time.Time
}

// Flat 返回是否无持仓。
func (p Position) Flat() bool {
	return p.Side == PositionSideFlat || p.Size == 0
}

// OrderRequest 描述一笔待提交的市价委托。
type OrderRequest struct {
	Symbol        string
	Side          string // buy | sell
	Quantity      float64
	ReduceOnly    bool
	StopLossPrice float64 // 大于0时随单携带止损触发价
}

// OrderTicket 为交易所回执摘要。
type OrderTicket struct {
	ID        string
	Symbol    string
	Side      string
	Quantity  float64
	Status    string
	Timestamp time.Time
}
