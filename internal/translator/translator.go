package translator

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tv-bridge/internal/exchange"
)

type marketClient interface {
	AvailableBalance(ctx context.Context) (float64, error)
	LastPrice(ctx context.Context, symbol string) (float64, error)
	InstrumentFilters(ctx context.Context, symbol string) (exchange.InstrumentFilters, error)
}

// Translator 将校验后的信号翻译为订单意图：并发拉取账户权益、
// 最新价与合约约束，完成数量与止损价计算。
type Translator struct {
	client   marketClient
	defaults Defaults
	logger   *zap.Logger
}

// New 创建信号翻译器。
func New(client marketClient, defaults Defaults, logger *zap.Logger) *Translator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Translator{
		client:   client,
		defaults: defaults,
		logger:   logger,
	}
}

// Defaults 返回配置缺省值，供 /info 等只读端点回显。
func (t *Translator) Defaults() Defaults {
	return t.defaults
}

// Validate 仅做负载校验，不触达交易所。干跑模式的唯一入口。
func (t *Translator) Validate(p AlertPayload) (Alert, error) {
	return ValidatePayload(p, t.defaults)
}

// Translate 校验负载并产出可执行的订单意图。
func (t *Translator) Translate(ctx context.Context, p AlertPayload) (OrderIntent, error) {
	alert, err := ValidatePayload(p, t.defaults)
	if err != nil {
		return OrderIntent{}, err
	}

	if alert.Action == ActionClose {
		return OrderIntent{
			Symbol:     alert.Symbol,
			ReduceOnly: true,
			Close:      true,
			Reason:     alert.Reason,
		}, nil
	}

	side := SideBuy
	if alert.Action == ActionSell {
		side = SideSell
	}

	var (
		balance   float64
		lastPrice float64
		filters   exchange.InstrumentFilters
	)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		price, err := t.client.LastPrice(groupCtx, alert.Symbol)
		if err != nil {
			return fmt.Errorf("获取最新价失败: %w", err)
		}
		lastPrice = price
		return nil
	})

	group.Go(func() error {
		f, err := t.client.InstrumentFilters(groupCtx, alert.Symbol)
		if err != nil {
			return fmt.Errorf("获取合约约束失败: %w", err)
		}
		filters = f
		return nil
	})

	if alert.Mode == SizingModePercent {
		group.Go(func() error {
			b, err := t.client.AvailableBalance(groupCtx)
			if err != nil {
				return fmt.Errorf("获取账户权益失败: %w", err)
			}
			balance = b
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return OrderIntent{}, err
	}

	quantity, err := ComputeQuantity(SizingInput{
		Mode:             alert.Mode,
		Quantity:         alert.Quantity,
		PercentOfBalance: alert.PercentOfBalance,
		Balance:          balance,
		LastPrice:        lastPrice,
		Leverage:         alert.Leverage,
		Filters:          filters,
	})
	if err != nil {
		return OrderIntent{}, err
	}
	if quantity <= 0 {
		t.logger.Warn("取整后数量不足最小下单量",
			zap.String("symbol", alert.Symbol),
			zap.String("mode", string(alert.Mode)),
			zap.Float64("balance", balance),
			zap.Float64("last_price", lastPrice),
			zap.Float64("lot_step", filters.LotStep),
			zap.Float64("min_quantity", filters.MinQuantity),
		)
		return OrderIntent{}, fmt.Errorf("%w: symbol=%s", ErrInsufficientSize, alert.Symbol)
	}

	stopLoss := ComputeStopLoss(side, lastPrice, alert.StopLossPercent, filters.PriceTick)

	intent := OrderIntent{
		Symbol:        alert.Symbol,
		Side:          side,
		Quantity:      quantity,
		StopLossPrice: stopLoss,
		Leverage:      alert.Leverage,
		Reason:        alert.Reason,
	}

	t.logger.Info("信号翻译完成",
		zap.String("symbol", intent.Symbol),
		zap.String("side", string(intent.Side)),
		zap.Float64("quantity", intent.Quantity),
		zap.Float64("stop_loss", intent.StopLossPrice),
		zap.Int("leverage", intent.Leverage),
		zap.String("reason", intent.Reason),
	)

	return intent, nil
}
