package execution

import (
	"time"

	"tv-bridge/internal/exchange"
)

// Result 为一次信号执行的结果摘要。
type Result struct {
	Symbol     string                 `json:"symbol"`
	NoOp       bool                   `json:"no_op"`
	Reversed   bool                   `json:"reversed"`
	Closed     bool                   `json:"closed"`
	Tickets    []exchange.OrderTicket `json:"tickets"`
	ExecutedAt time.Time              `json:"executed_at"`
}
