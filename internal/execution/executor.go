package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"tv-bridge/internal/exchange"
	"tv-bridge/internal/translator"
)

type tradeClient interface {
	FetchPosition(ctx context.Context, symbol string) (exchange.Position, error)
	PlaceOrder(ctx context.Context, req exchange.OrderRequest) (exchange.OrderTicket, error)
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	CancelAllOrders(ctx context.Context, symbol string) error
}

// Executor 把订单意图落地为交易所委托，负责自动反手与平仓语义。
// 同一合约的"先平后开"序列按合约互斥串行，避免并发信号叠加持仓。
type Executor struct {
	client tradeClient
	logger *zap.Logger

	mu          sync.Mutex
	symbolLocks map[string]*sync.Mutex
}

// NewExecutor 创建执行器。
func NewExecutor(client tradeClient, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		client:      client,
		logger:      logger,
		symbolLocks: make(map[string]*sync.Mutex),
	}
}

// Execute 执行订单意图。持仓查询失败时绝不盲目开仓，直接上抛错误。
func (e *Executor) Execute(ctx context.Context, intent translator.OrderIntent) (Result, error) {
	lock := e.lockFor(intent.Symbol)
	lock.Lock()
	defer lock.Unlock()

	result := Result{
		Symbol:     intent.Symbol,
		Tickets:    make([]exchange.OrderTicket, 0, 2),
		ExecutedAt: time.Now().UTC(),
	}

	if intent.Close {
		return e.closePosition(ctx, intent, result)
	}

	return e.openPosition(ctx, intent, result)
}

func (e *Executor) closePosition(ctx context.Context, intent translator.OrderIntent, result Result) (Result, error) {
	pos, err := e.client.FetchPosition(ctx, intent.Symbol)
	if err != nil {
		return result, fmt.Errorf("查询持仓失败: %w", err)
	}

	if pos.Flat() {
		e.logger.Info("收到平仓信号但当前无持仓", zap.String("symbol", intent.Symbol))
		result.NoOp = true
		return result, nil
	}

	// 先撤掉该合约全部挂单，避免平仓后残留委托重新开仓。
	if err := e.client.CancelAllOrders(ctx, intent.Symbol); err != nil {
		return result, err
	}

	ticket, err := e.client.PlaceOrder(ctx, exchange.OrderRequest{
		Symbol:     intent.Symbol,
		Side:       string(closeSide(pos.Side)),
		Quantity:   pos.Size,
		ReduceOnly: true,
	})
	if err != nil {
		return result, fmt.Errorf("平仓委托失败: %w", err)
	}

	result.Tickets = append(result.Tickets, ticket)
	result.Closed = true

	e.logger.Info("持仓已平仓",
		zap.String("symbol", intent.Symbol),
		zap.String("position_side", string(pos.Side)),
		zap.Float64("size", pos.Size),
	)

	return result, nil
}

func (e *Executor) openPosition(ctx context.Context, intent translator.OrderIntent, result Result) (Result, error) {
	if intent.Leverage > 0 {
		if err := e.client.SetLeverage(ctx, intent.Symbol, intent.Leverage); err != nil {
			return result, err
		}
	}

	pos, err := e.client.FetchPosition(ctx, intent.Symbol)
	if err != nil {
		// 查不到持仓就开仓会有双倍敞口风险，直接失败。
		return result, fmt.Errorf("查询持仓失败，拒绝开仓: %w", err)
	}

	if !pos.Flat() && isOpposite(intent.Side, pos.Side) {
		closeTicket, err := e.client.PlaceOrder(ctx, exchange.OrderRequest{
			Symbol:     intent.Symbol,
			Side:       string(intent.Side),
			Quantity:   pos.Size,
			ReduceOnly: true,
		})
		if err != nil {
			return result, fmt.Errorf("反手前平仓失败: %w", err)
		}
		result.Tickets = append(result.Tickets, closeTicket)
		result.Reversed = true

		e.logger.Info("已平掉反向持仓",
			zap.String("symbol", intent.Symbol),
			zap.String("position_side", string(pos.Side)),
			zap.Float64("size", pos.Size),
		)
	}

	entryTicket, err := e.client.PlaceOrder(ctx, exchange.OrderRequest{
		Symbol:        intent.Symbol,
		Side:          string(intent.Side),
		Quantity:      intent.Quantity,
		StopLossPrice: intent.StopLossPrice,
	})
	if err != nil {
		return result, fmt.Errorf("开仓委托失败: %w", err)
	}

	result.Tickets = append(result.Tickets, entryTicket)

	e.logger.Info("开仓完成",
		zap.String("symbol", intent.Symbol),
		zap.String("side", string(intent.Side)),
		zap.Float64("quantity", intent.Quantity),
		zap.Float64("stop_loss", intent.StopLossPrice),
		zap.Bool("reversed", result.Reversed),
		zap.String("reason", intent.Reason),
	)

	return result, nil
}

func (e *Executor) lockFor(symbol string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	lock, ok := e.symbolLocks[symbol]
	if !ok {
		lock = &sync.Mutex{}
		e.symbolLocks[symbol] = lock
	}
	return lock
}

// closeSide 返回平掉指定持仓方向所需的委托方向。
func closeSide(side exchange.PositionSide) translator.Side {
	if side == exchange.PositionSideLong {
		return translator.SideSell
	}
	return translator.SideBuy
}

// isOpposite 判断委托方向与持仓方向是否相反。
func isOpposite(orderSide translator.Side, posSide exchange.PositionSide) bool {
	switch posSide {
	case exchange.PositionSideLong:
		return orderSide == translator.SideSell
	case exchange.PositionSideShort:
		return orderSide == translator.SideBuy
	default:
		return false
	}
}
