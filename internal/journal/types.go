package journal

import (
	"time"

	"tv-bridge/internal/execution"
	"tv-bridge/internal/translator"
)

// EventType 表示信号流水事件类型。
type EventType string

const (
	EventSignalReceived EventType = "signal_received"
	EventSignalRejected EventType = "signal_rejected"
	EventDryRun         EventType = "dry_run"
	EventExecution      EventType = "execution"
	EventError          EventType = "error"
)

// Event 封装通用流水事件。
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// SignalPayload 记录入站信号原文。
type SignalPayload struct {
	Raw translator.AlertPayload `json:"raw"`
}

// RejectionPayload 记录被拒信号及原因。
type RejectionPayload struct {
	Raw    translator.AlertPayload `json:"raw"`
	Reason string                  `json:"reason"`
}

// DryRunPayload 记录干跑模式下校验通过的信号。
type DryRunPayload struct {
	Alert translator.Alert `json:"alert"`
}

// ExecutionPayload 记录订单执行结果。
type ExecutionPayload struct {
	Intent translator.OrderIntent `json:"intent"`
	Result execution.Result       `json:"result"`
}

// ErrorPayload 记录异常。
type ErrorPayload struct {
	Message string                 `json:"message"`
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}
