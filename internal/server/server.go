package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tv-bridge/internal/config"
)

// Server 承载入站 webhook 的 HTTP 服务。
type Server struct {
	cfg     config.ServerConfig
	logger  *zap.Logger
	handler *Handler
}

// NewServer 创建 HTTP 服务。
func NewServer(cfg config.ServerConfig, handler *Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:     cfg,
		logger:  logger,
		handler: handler,
	}
}

// Router 构建 gin 路由。
func (s *Server) Router() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(s.logger))

	engine.GET("/", s.handler.Root)
	engine.GET("/ping", s.handler.Ping)
	engine.GET("/info", s.handler.Info)
	engine.GET("/events", s.handler.Events)

	// 两种鉴权形态并存，兼容 TradingView 告警模板的不同写法。
	engine.POST("/webhook/:token", s.handler.WebhookPath)
	engine.POST("/tv_webhook", s.handler.WebhookQuery)

	return engine
}

// Run 启动服务并阻塞至 ctx 取消，随后优雅退出。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Listen,
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	s.logger.Info("webhook 服务已启动", zap.String("addr", s.cfg.Listen))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownTimeout := s.cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Warn("关闭 webhook 服务失败", zap.Error(err))
		return err
	}

	s.logger.Info("webhook 服务已退出")
	return nil
}

// requestLogger 记录每个请求的方法、路径、状态与耗时。
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
