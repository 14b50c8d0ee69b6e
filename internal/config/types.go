package config

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// Config 聚合了系统运行所需的全部配置项。
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Exchange ExchangeConfig `mapstructure:"exchange"`
	Trading  TradingConfig  `mapstructure:"trading"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// ServerConfig 描述 HTTP 服务监听参数。
type ServerConfig struct {
	Listen          string        `mapstructure:"listen"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// WebhookConfig 描述入站信号鉴权参数。
type WebhookConfig struct {
	Token string `mapstructure:"token"`
}

// ExchangeConfig 描述交易所连接信息。
type ExchangeConfig struct {
	Name        string        `mapstructure:"name"`
	APIKey      string        `mapstructure:"api_key"`
	APISecret   string        `mapstructure:"api_secret"`
	UseTestnet  bool          `mapstructure:"use_testnet"`
	CallTimeout time.Duration `mapstructure:"call_timeout"`
	Retry       RetryConfig   `mapstructure:"retry"`
}

// RetryConfig 统一控制只读调用的重试机制。
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	MinDelay    time.Duration `mapstructure:"min_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// TradingConfig 控制信号转化为订单时的默认参数。
type TradingConfig struct {
	Enabled                bool    `mapstructure:"enabled"`
	Symbol                 string  `mapstructure:"symbol"`
	DefaultLeverage        int     `mapstructure:"default_leverage"`
	DefaultStopLossPercent float64 `mapstructure:"default_stop_loss_percent"`
}

// DatabaseConfig 管理事件流水库连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// Validate 校验配置合法性，汇总全部问题后一次性返回。
func (c *Config) Validate() error {
	var err error

	if c.Server.Listen == "" {
		err = multierr.Append(err, errors.New("server.listen 不能为空"))
	}
	if c.Server.ShutdownTimeout < 0 {
		err = multierr.Append(err, errors.New("server.shutdown_timeout 不能为负"))
	}

	if c.Webhook.Token == "" {
		err = multierr.Append(err, errors.New("webhook.token 不能为空"))
	}

	if c.Exchange.Name == "" {
		err = multierr.Append(err, errors.New("exchange.name 不能为空"))
	}
	if c.Exchange.CallTimeout <= 0 {
		err = multierr.Append(err, errors.New("exchange.call_timeout 必须大于0"))
	}
	if c.Exchange.Retry.MaxAttempts <= 0 {
		err = multierr.Append(err, errors.New("exchange.retry.max_attempts 必须大于0"))
	}
	if c.Exchange.Retry.MinDelay <= 0 || c.Exchange.Retry.MaxDelay < c.Exchange.Retry.MinDelay {
		err = multierr.Append(err, errors.New("exchange.retry 延迟配置非法"))
	}

	// 启用真实下单时，交易所凭证缺失属于致命错误，进程拒绝启动。
	if c.Trading.Enabled {
		if c.Exchange.APIKey == "" || c.Exchange.APISecret == "" {
			err = multierr.Append(err, errors.New("trading.enabled=true 时必须配置 exchange.api_key 与 exchange.api_secret"))
		}
	}
	if c.Trading.Symbol == "" {
		err = multierr.Append(err, errors.New("trading.symbol 不能为空"))
	}
	if c.Trading.DefaultLeverage < 1 || c.Trading.DefaultLeverage > 100 {
		err = multierr.Append(err, errors.New("trading.default_leverage 必须位于[1,100]"))
	}
	if c.Trading.DefaultStopLossPercent < 0 {
		err = multierr.Append(err, errors.New("trading.default_stop_loss_percent 不能为负"))
	}

	if c.Database.Path == "" && !c.Database.InMemory {
		err = multierr.Append(err, errors.New("database.path 不能为空"))
	}
	if c.Database.MaxOpenConns <= 0 {
		err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
	}
	if c.Database.MaxIdleConns < 0 {
		err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
	}
	if c.Database.ConnMaxLifetime < 0 {
		err = multierr.Append(err, errors.New("database.conn_max_lifetime 不能为负"))
	}

	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}
