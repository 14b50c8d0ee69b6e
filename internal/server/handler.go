package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tv-bridge/internal/config"
	"tv-bridge/internal/exchange"
	"tv-bridge/internal/execution"
	"tv-bridge/internal/journal"
	"tv-bridge/internal/translator"
)

const headerToken = "X-Webhook-Token"

type eventJournal interface {
	RecordSignal(ctx context.Context, raw translator.AlertPayload)
	RecordRejection(ctx context.Context, raw translator.AlertPayload, reason string)
	RecordDryRun(ctx context.Context, alert translator.Alert)
	RecordExecution(ctx context.Context, intent translator.OrderIntent, result execution.Result)
	RecordError(ctx context.Context, msg string, err error, ctxMap map[string]interface{})
	ListEvents(ctx context.Context, eventType journal.EventType, limit int) ([]journal.Event, error)
}

// Handler 聚合 webhook 各端点依赖。
type Handler struct {
	translator     *translator.Translator
	trader         execution.Trader
	journal        eventJournal
	sanitizer      *exchange.Sanitizer
	logger         *zap.Logger
	token          string
	tradingEnabled bool
	useTestnet     bool
	callTimeout    time.Duration
}

// NewHandler 创建请求处理器。
func NewHandler(
	cfg *config.Config,
	tr *translator.Translator,
	trader execution.Trader,
	jrnl eventJournal,
	sanitizer *exchange.Sanitizer,
	logger *zap.Logger,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sanitizer == nil {
		sanitizer = exchange.NewSanitizer()
	}
	return &Handler{
		translator:     tr,
		trader:         trader,
		journal:        jrnl,
		sanitizer:      sanitizer,
		logger:         logger,
		token:          cfg.Webhook.Token,
		tradingEnabled: cfg.Trading.Enabled,
		useTestnet:     cfg.Exchange.UseTestnet,
		callTimeout:    cfg.Exchange.CallTimeout,
	}
}

// Root 为存活探针。
func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok":   true,
		"hint": "见 /info 获取端点说明",
	})
}

// Ping 为部署探活端点。
func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"pong": true})
}

// Info 回显端点说明与脱敏后的当前配置。
func (h *Handler) Info(c *gin.Context) {
	defaults := h.translator.Defaults()
	c.JSON(http.StatusOK, gin.H{
		"ok": true,
		"endpoints": gin.H{
			"webhook_query": "/tv_webhook?token=<YOUR_TOKEN>",
			"webhook_path":  "/webhook/<YOUR_TOKEN>",
			"events":        "/events",
		},
		"token_masked": maskToken(h.token),
		"config": gin.H{
			"symbol":                    defaults.Symbol,
			"default_leverage":          defaults.Leverage,
			"default_stop_loss_percent": defaults.StopLossPercent,
			"use_testnet":               h.useTestnet,
			"trading_enabled":           h.tradingEnabled,
		},
	})
}

// Events 按类型检索最近的信号流水。
func (h *Handler) Events(c *gin.Context) {
	limit := 200
	if qs := c.Query("limit"); qs != "" {
		if v, err := strconv.Atoi(qs); err == nil && v > 0 {
			if v > 1000 {
				v = 1000
			}
			limit = v
		}
	}

	eventType := journal.EventType(strings.ToLower(strings.TrimSpace(c.Query("type"))))

	events, err := h.journal.ListEvents(c.Request.Context(), eventType, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, events)
}

// WebhookPath 处理 path 携带 token 的告警。
func (h *Handler) WebhookPath(c *gin.Context) {
	h.handleWebhook(c, c.Param("token"))
}

// WebhookQuery 处理 query 参数或请求头携带 token 的告警。
func (h *Handler) WebhookQuery(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = c.GetHeader(headerToken)
	}
	h.handleWebhook(c, token)
}

func (h *Handler) handleWebhook(c *gin.Context, token string) {
	// 鉴权先行，token 不对连请求体都不读。
	if !tokenEqual(token, h.token) {
		c.JSON(http.StatusForbidden, gin.H{"status": "error", "error": "Invalid webhook token"})
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil || len(body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "Empty body"})
		return
	}

	var payload translator.AlertPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "Invalid JSON"})
		return
	}

	ctx := c.Request.Context()
	h.journal.RecordSignal(ctx, payload)

	if !h.tradingEnabled {
		h.dryRun(c, payload)
		return
	}

	// 交易所链路整体限时，超时宁可失败也不悬挂。
	callCtx, cancel := context.WithTimeout(ctx, h.callTimeout)
	defer cancel()

	intent, err := h.translator.Translate(callCtx, payload)
	if err != nil {
		h.translateError(c, payload, err)
		return
	}

	result, err := h.trader.Execute(callCtx, intent)
	if err != nil {
		h.journal.RecordError(ctx, "执行订单失败", err, map[string]interface{}{
			"symbol": intent.Symbol,
			"side":   string(intent.Side),
		})
		c.JSON(http.StatusBadGateway, gin.H{
			"status": "error",
			"error":  h.sanitizer.Clean(err),
		})
		return
	}

	h.journal.RecordExecution(ctx, intent, result)

	c.JSON(http.StatusOK, gin.H{
		"status":   "success",
		"received": payload,
		"intent": gin.H{
			"symbol":          intent.Symbol,
			"side":            string(intent.Side),
			"quantity":        intent.Quantity,
			"stop_loss_price": intent.StopLossPrice,
			"reduce_only":     intent.ReduceOnly || intent.Close,
		},
		"result": result,
	})
}

func (h *Handler) dryRun(c *gin.Context, payload translator.AlertPayload) {
	alert, err := h.translator.Validate(payload)
	if err != nil {
		h.translateError(c, payload, err)
		return
	}

	h.journal.RecordDryRun(c.Request.Context(), alert)
	h.logger.Info("干跑模式，信号已校验但未下单",
		zap.String("symbol", alert.Symbol),
		zap.String("action", string(alert.Action)),
	)

	c.JSON(http.StatusOK, gin.H{
		"status":   "dry_run",
		"received": payload,
		"alert": gin.H{
			"symbol":            alert.Symbol,
			"action":            string(alert.Action),
			"mode":              string(alert.Mode),
			"leverage":          alert.Leverage,
			"stop_loss_percent": alert.StopLossPercent,
			"reason":            alert.Reason,
		},
	})
}

func (h *Handler) translateError(c *gin.Context, payload translator.AlertPayload, err error) {
	var ve *translator.ValidationError
	switch {
	case errors.As(err, &ve):
		h.journal.RecordRejection(c.Request.Context(), payload, ve.Error())
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"field":  ve.Field,
			"error":  ve.Error(),
		})
	case errors.Is(err, translator.ErrInsufficientSize):
		// 未触达交易所，与网关错误区分开。
		h.journal.RecordRejection(c.Request.Context(), payload, err.Error())
		c.JSON(http.StatusOK, gin.H{
			"status": "skipped",
			"reason": "insufficient_size",
			"error":  err.Error(),
		})
	default:
		h.journal.RecordError(c.Request.Context(), "信号翻译失败", err, nil)
		c.JSON(http.StatusBadGateway, gin.H{
			"status": "error",
			"error":  h.sanitizer.Clean(err),
		})
	}
}

// tokenEqual 恒定时间比较，避免时序侧信道泄露 token。
func tokenEqual(given, expected string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(given), []byte(expected)) == 1
}

func maskToken(token string) string {
	if len(token) <= 4 {
		return "***"
	}
	return token[:2] + strings.Repeat("*", len(token)-4) + token[len(token)-2:]
}
