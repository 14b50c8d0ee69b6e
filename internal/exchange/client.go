package exchange

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"go.uber.org/zap"

	"tv-bridge/internal/config"
)

// Client 封装 Bybit 合约接口并对只读调用实现重试机制。
type Client struct {
	cfg      config.ExchangeConfig
	logger   *zap.Logger
	exchange *ccxt.Bybit

	marketsMu     sync.Mutex
	marketsLoaded bool

	// 合约过滤参数缓存，按合约懒加载。
	filtersMu sync.RWMutex
	filters   map[string]InstrumentFilters
}

// NewClient 构造 Bybit USDT 永续客户端。
func NewClient(cfg config.ExchangeConfig, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	userConfig := map[string]interface{}{
		"enableRateLimit": true,
		"options": map[string]interface{}{
			"defaultType": "swap",
		},
	}

	if cfg.APIKey != "" {
		userConfig["apiKey"] = cfg.APIKey
	}
	if cfg.APISecret != "" {
		userConfig["secret"] = cfg.APISecret
	}

	ex := ccxt.NewBybit(userConfig)
	if cfg.UseTestnet {
		ex.SetSandboxMode(true)
	}

	return &Client{
		cfg:      cfg,
		logger:   logger,
		exchange: ex,
		filters:  make(map[string]InstrumentFilters),
	}, nil
}

// AvailableBalance 查询账户可用保证金（USDT 优先）。
func (c *Client) AvailableBalance(ctx context.Context) (float64, error) {
	var balances ccxt.Balances

	err := c.callWithRetry(ctx, "fetch_balance", func() error {
		result, err := c.exchange.FetchBalance()
		if err != nil {
			return err
		}
		balances = result
		return nil
	})
	if err != nil {
		return 0, err
	}

	if balances.Free != nil {
		for _, code := range []string{"USDT", "USDC", "USD"} {
			if free, ok := balances.Free[code]; ok && free != nil && *free > 0 {
				return *free, nil
			}
		}
	}
	if balances.Total != nil {
		for _, code := range []string{"USDT", "USDC", "USD"} {
			if total, ok := balances.Total[code]; ok && total != nil && *total > 0 {
				return *total, nil
			}
		}
	}

	return 0, nil
}

// LastPrice 查询合约最新成交价。
func (c *Client) LastPrice(ctx context.Context, symbol string) (float64, error) {
	var ticker ccxt.Ticker

	err := c.callWithRetry(ctx, "fetch_ticker", func() error {
		if err := c.ensureMarketsLoaded(ctx); err != nil {
			return err
		}
		result, err := c.exchange.FetchTicker(symbol)
		if err != nil {
			return err
		}
		ticker = result
		return nil
	})
	if err != nil {
		return 0, err
	}

	if ticker.Last != nil && *ticker.Last > 0 {
		return *ticker.Last, nil
	}
	if ticker.Close != nil && *ticker.Close > 0 {
		return *ticker.Close, nil
	}

	return 0, fmt.Errorf("%w: %s", ErrNoPrice, symbol)
}

// InstrumentFilters 返回合约的下单约束，进程生命周期内按合约缓存。
// 交易所极少调整过滤参数，缓存不做失效处理。
func (c *Client) InstrumentFilters(ctx context.Context, symbol string) (InstrumentFilters, error) {
	c.filtersMu.RLock()
	cached, ok := c.filters[symbol]
	c.filtersMu.RUnlock()
	if ok {
		return cached, nil
	}

	var markets map[string]ccxt.MarketInterface
	err := c.callWithRetry(ctx, "load_markets", func() error {
		result, err := c.exchange.LoadMarkets()
		if err != nil {
			return err
		}
		markets = result
		return nil
	})
	if err != nil {
		return InstrumentFilters{}, err
	}

	market, ok := markets[symbol]
	if !ok {
		return InstrumentFilters{}, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}

	filters := InstrumentFilters{
		Symbol:      symbol,
		LotStep:     derefFloat(market.Precision.Amount),
		MinQuantity: derefFloat(market.Limits.Amount.Min),
		PriceTick:   derefFloat(market.Precision.Price),
	}
	if filters.LotStep <= 0 || filters.PriceTick <= 0 {
		return InstrumentFilters{}, fmt.Errorf("合约 %s 缺少数量步长或价格步长元数据", symbol)
	}

	c.filtersMu.Lock()
	c.filters[symbol] = filters
	c.filtersMu.Unlock()

	c.logger.Info("已缓存合约过滤参数",
		zap.String("symbol", symbol),
		zap.Float64("lot_step", filters.LotStep),
		zap.Float64("min_quantity", filters.MinQuantity),
		zap.Float64("price_tick", filters.PriceTick),
	)

	return filters, nil
}

// FetchPosition 查询合约当前净持仓，未持仓时返回 Flat 仓位。
func (c *Client) FetchPosition(ctx context.Context, symbol string) (Position, error) {
	var raw []ccxt.Position

	err := c.callWithRetry(ctx, "fetch_positions", func() error {
		result, err := c.exchange.FetchPositions()
		if err != nil {
			return err
		}
		raw = result
		return nil
	})
	if err != nil {
		return Position{}, err
	}

	now := time.Now().UTC()
	for _, rawPos := range raw {
		posSymbol := derefString(rawPos.Symbol)
		if posSymbol == "" || !strings.EqualFold(posSymbol, symbol) {
			continue
		}

		size := derefFloat(rawPos.Contracts)
		if size == 0 {
			continue
		}

		side := PositionSideLong
		if strings.EqualFold(derefString(rawPos.Side), "short") {
			side = PositionSideShort
		}

		return Position{
			Symbol:        symbol,
			Side:          side,
			Size:          size,
			EntryPrice:    derefFloat(rawPos.EntryPrice),
			MarkPrice:     derefFloat(rawPos.MarkPrice),
			UnrealizedPnl: derefFloat(rawPos.UnrealizedPnl),
			Leverage:      derefFloat(rawPos.Leverage),
			Timestamp:     now,
		}, nil
	}

	return Position{Symbol: symbol, Side: PositionSideFlat, Timestamp: now}, nil
}

// PlaceOrder 提交市价委托。下单调用不做自动重试：失败后重复提交
// 可能造成重复成交，由调用方决策。
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (OrderTicket, error) {
	if err := ctx.Err(); err != nil {
		return OrderTicket{}, err
	}
	if err := c.ensureMarketsLoaded(ctx); err != nil {
		return OrderTicket{}, err
	}

	params := map[string]interface{}{}
	if req.ReduceOnly {
		params["reduceOnly"] = true
	}
	if req.StopLossPrice > 0 {
		params["stopLossPrice"] = req.StopLossPrice
	}

	var opts []ccxt.CreateMarketOrderOptions
	if len(params) > 0 {
		opts = append(opts, ccxt.WithCreateMarketOrderParams(params))
	}

	start := time.Now()
	order, err := c.exchange.CreateMarketOrder(req.Symbol, req.Side, req.Quantity, opts...)
	if err != nil {
		normalized, _ := c.classifyError(err)
		c.logger.Error("下单失败",
			zap.String("symbol", req.Symbol),
			zap.String("side", req.Side),
			zap.Float64("quantity", req.Quantity),
			zap.Bool("reduce_only", req.ReduceOnly),
			zap.Duration("latency", time.Since(start)),
			zap.Error(normalized),
		)
		return OrderTicket{}, normalized
	}

	ticket := OrderTicket{
		ID:        derefString(order.Id),
		Symbol:    req.Symbol,
		Side:      req.Side,
		Quantity:  req.Quantity,
		Status:    derefString(order.Status),
		Timestamp: time.Now().UTC(),
	}

	c.logger.Info("下单成功",
		zap.String("order_id", ticket.ID),
		zap.String("symbol", req.Symbol),
		zap.String("side", req.Side),
		zap.Float64("quantity", req.Quantity),
		zap.Bool("reduce_only", req.ReduceOnly),
	)

	return ticket, nil
}

// SetLeverage 设置合约杠杆。Bybit 对重复设置相同杠杆返回业务错误（110043），
// 视为幂等成功。
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.ensureMarketsLoaded(ctx); err != nil {
		return err
	}

	_, err := c.exchange.SetLeverage(int64(leverage), ccxt.WithSetLeverageSymbol(symbol))
	if err != nil {
		msg := err.Error()
		if strings.Contains(msg, "110043") || strings.Contains(strings.ToLower(msg), "leverage not modified") {
			return nil
		}
		normalized, _ := c.classifyError(err)
		return fmt.Errorf("设置杠杆失败: %w", normalized)
	}

	c.logger.Info("已设置杠杆", zap.String("symbol", symbol), zap.Int("leverage", leverage))
	return nil
}

// CancelAllOrders 撤销合约下全部挂单。
func (c *Client) CancelAllOrders(ctx context.Context, symbol string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.ensureMarketsLoaded(ctx); err != nil {
		return err
	}

	if _, err := c.exchange.CancelAllOrders(ccxt.WithCancelAllOrdersSymbol(symbol)); err != nil {
		normalized, _ := c.classifyError(err)
		return fmt.Errorf("撤销挂单失败: %w", normalized)
	}

	c.logger.Info("已撤销全部挂单", zap.String("symbol", symbol))
	return nil
}

func (c *Client) ensureMarketsLoaded(ctx context.Context) error {
	if c.marketsLoaded {
		return nil
	}

	c.marketsMu.Lock()
	defer c.marketsMu.Unlock()

	if c.marketsLoaded {
		return nil
	}

	loadErr := c.callWithRetry(ctx, "load_markets", func() error {
		_, err := c.exchange.LoadMarkets()
		return err
	})
	if loadErr != nil {
		return loadErr
	}

	c.marketsLoaded = true
	c.logger.Info("已完成市场元数据加载")
	return nil
}

// callWithRetry 对只读调用做指数退避重试。ccxt 调用本身不接受 ctx，
// 超时只在每次尝试之间与退避等待期间生效，单次在途请求由 ccxt 自身超时兜底。
func (c *Client) callWithRetry(ctx context.Context, operation string, fn func() error) error {
	attempt := 0
	delay := c.cfg.Retry.MinDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	maxDelay := c.cfg.Retry.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}
	maxAttempts := c.cfg.Retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		attempt++
		start := time.Now()
		err := fn()
		duration := time.Since(start)
		if err == nil {
			if attempt > 1 {
				c.logger.Info("交易所调用重试后成功",
					zap.String("operation", operation),
					zap.Int("attempts", attempt),
					zap.Duration("latency", duration),
				)
			}
			return nil
		}

		normalizedErr, retry := c.classifyError(err)

		if errors.Is(normalizedErr, ErrMaintenance) {
			c.logger.Warn("交易所维护中",
				zap.String("operation", operation),
				zap.Error(normalizedErr),
			)
			return normalizedErr
		}

		if !retry || attempt >= maxAttempts {
			c.logger.Error("交易所调用失败",
				zap.String("operation", operation),
				zap.Int("attempts", attempt),
				zap.Duration("latency", duration),
				zap.Error(normalizedErr),
			)
			return normalizedErr
		}

		wait := delay
		if wait > maxDelay {
			wait = maxDelay
		}

		c.logger.Warn("交易所调用失败，等待重试",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(normalizedErr),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

// classifyError 归一化错误并给出重试决策，重试判定交由 IsRetryable。
func (c *Client) classifyError(err error) (error, bool) {
	if err == nil {
		return nil, false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err, false
	}

	var ccxtErr *ccxt.Error
	if errors.As(err, &ccxtErr) && ccxtErr.Type == ccxt.OnMaintenanceErrType {
		message := strings.TrimSpace(ccxtErr.Message)
		if message == "" {
			message = "exchange under maintenance"
		}
		return fmt.Errorf("%w: %s", ErrMaintenance, message), false
	}

	return err, IsRetryable(err)
}

func derefFloat(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
