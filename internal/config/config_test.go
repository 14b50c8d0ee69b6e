package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		App: AppConfig{Environment: "test"},
		Server: ServerConfig{
			Listen:          ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Webhook: WebhookConfig{Token: "mysecret123"},
		Exchange: ExchangeConfig{
			Name:        "bybit",
			APIKey:      "key",
			APISecret:   "secret",
			UseTestnet:  true,
			CallTimeout: 8 * time.Second,
			Retry: RetryConfig{
				MaxAttempts: 3,
				MinDelay:    500 * time.Millisecond,
				MaxDelay:    5 * time.Second,
			},
		},
		Trading: TradingConfig{
			Enabled:                false,
			Symbol:                 "CYBERUSDT",
			DefaultLeverage:        10,
			DefaultStopLossPercent: 0,
		},
		Database: DatabaseConfig{
			Path:            "data/test.db",
			MaxOpenConns:    4,
			MaxIdleConns:    4,
			ConnMaxLifetime: time.Hour,
		},
		Logging: LoggingConfig{
			Level:            "info",
			Encoding:         "console",
			OutputPaths:      []string{"stdout"},
			ErrorOutputPaths: []string{"stderr"},
		},
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "合法配置",
			mutate: func(c *Config) {},
		},
		{
			name: "干跑模式无需凭证",
			mutate: func(c *Config) {
				c.Trading.Enabled = false
				c.Exchange.APIKey = ""
				c.Exchange.APISecret = ""
			},
		},
		{
			name: "启用交易但缺少APIKey",
			mutate: func(c *Config) {
				c.Trading.Enabled = true
				c.Exchange.APIKey = ""
			},
			wantErr: "trading.enabled=true 时必须配置",
		},
		{
			name: "启用交易但缺少APISecret",
			mutate: func(c *Config) {
				c.Trading.Enabled = true
				c.Exchange.APISecret = ""
			},
			wantErr: "trading.enabled=true 时必须配置",
		},
		{
			name:    "token为空",
			mutate:  func(c *Config) { c.Webhook.Token = "" },
			wantErr: "webhook.token 不能为空",
		},
		{
			name:    "监听地址为空",
			mutate:  func(c *Config) { c.Server.Listen = "" },
			wantErr: "server.listen 不能为空",
		},
		{
			name:    "调用超时非法",
			mutate:  func(c *Config) { c.Exchange.CallTimeout = 0 },
			wantErr: "exchange.call_timeout 必须大于0",
		},
		{
			name:    "重试次数非法",
			mutate:  func(c *Config) { c.Exchange.Retry.MaxAttempts = 0 },
			wantErr: "exchange.retry.max_attempts 必须大于0",
		},
		{
			name: "重试延迟上限小于下限",
			mutate: func(c *Config) {
				c.Exchange.Retry.MinDelay = 2 * time.Second
				c.Exchange.Retry.MaxDelay = time.Second
			},
			wantErr: "exchange.retry 延迟配置非法",
		},
		{
			name:    "杠杆超出范围",
			mutate:  func(c *Config) { c.Trading.DefaultLeverage = 200 },
			wantErr: "trading.default_leverage 必须位于[1,100]",
		},
		{
			name:    "止损百分比为负",
			mutate:  func(c *Config) { c.Trading.DefaultStopLossPercent = -1 },
			wantErr: "trading.default_stop_loss_percent 不能为负",
		},
		{
			name: "多个错误一次性汇总",
			mutate: func(c *Config) {
				c.Webhook.Token = ""
				c.Server.Listen = ""
			},
			wantErr: "webhook.token 不能为空",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("期望校验通过, 实际错误: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("期望校验失败, 实际通过")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("错误信息 %q 未包含 %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
webhook:
  token: mysecret123
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}

	if cfg.Trading.Enabled {
		t.Fatal("trading.enabled 缺省值应为 false")
	}
	if cfg.Trading.Symbol != "CYBERUSDT" {
		t.Fatalf("缺省合约应为 CYBERUSDT, 实际 %s", cfg.Trading.Symbol)
	}
	if cfg.Trading.DefaultLeverage != 10 {
		t.Fatalf("缺省杠杆应为 10, 实际 %d", cfg.Trading.DefaultLeverage)
	}
	if cfg.Exchange.CallTimeout != 8*time.Second {
		t.Fatalf("缺省调用超时应为 8s, 实际 %s", cfg.Exchange.CallTimeout)
	}
	if !cfg.Exchange.UseTestnet {
		t.Fatal("缺省应使用测试网")
	}
}

func TestLoadRejectsTradingWithoutCredentials(t *testing.T) {
	path := writeConfigFile(t, `
webhook:
  token: mysecret123
trading:
  enabled: true
`)

	if _, err := Load(path); err == nil {
		t.Fatal("启用交易但缺少凭证时加载必须失败")
	} else if !strings.Contains(err.Error(), "trading.enabled=true 时必须配置") {
		t.Fatalf("错误信息未指向凭证缺失: %v", err)
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("写入临时配置失败: %v", err)
	}
	return path
}
