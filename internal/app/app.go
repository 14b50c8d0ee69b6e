package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"tv-bridge/internal/config"
	"tv-bridge/internal/exchange"
	"tv-bridge/internal/execution"
	"tv-bridge/internal/journal"
	"tv-bridge/internal/server"
	"tv-bridge/internal/store"
	"tv-bridge/internal/translator"
)

// App 聚合核心依赖并驱动系统生命周期。
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
}

// New 创建 App 实例。
func New(cfg *config.Config, logger *zap.Logger, store *store.Store) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
		store:  store,
	}
}

// Run 装配各组件并驱动 HTTP 服务，阻塞至 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("webhook 桥接服务已初始化",
		zap.String("environment", a.cfg.App.Environment),
		zap.String("exchange", a.cfg.Exchange.Name),
		zap.String("symbol", a.cfg.Trading.Symbol),
		zap.Bool("use_testnet", a.cfg.Exchange.UseTestnet),
		zap.Bool("trading_enabled", a.cfg.Trading.Enabled),
	)

	if !a.cfg.Trading.Enabled {
		a.logger.Warn("trading.enabled=false，当前为干跑模式，信号只校验不下单")
	}

	journalSvc, err := journal.NewService(a.store, a.logger)
	if err != nil {
		return fmt.Errorf("初始化信号流水失败: %w", err)
	}

	exClient, err := exchange.NewClient(a.cfg.Exchange, a.logger)
	if err != nil {
		return fmt.Errorf("初始化交易所客户端失败: %w", err)
	}

	sanitizer := exchange.NewSanitizer(
		a.cfg.Exchange.APIKey,
		a.cfg.Exchange.APISecret,
		a.cfg.Webhook.Token,
	)

	tr := translator.New(exClient, translator.Defaults{
		Symbol:          a.cfg.Trading.Symbol,
		Leverage:        a.cfg.Trading.DefaultLeverage,
		StopLossPercent: a.cfg.Trading.DefaultStopLossPercent,
	}, a.logger)

	executor := execution.NewExecutor(exClient, a.logger)

	handler := server.NewHandler(a.cfg, tr, executor, journalSvc, sanitizer, a.logger)
	srv := server.NewServer(a.cfg.Server, handler, a.logger)

	return srv.Run(ctx)
}
