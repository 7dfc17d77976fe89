package livehttp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"gridbot/internal/logger"

	"github.com/gin-gonic/gin"
)

// Server 暴露运行中网格机器人的状态查询、停止与 Prometheus 指标。
type Server struct {
	router *gin.Engine

	mu   sync.RWMutex
	addr string
}

const (
	defaultAddr       = ":9992"
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// ServerConfig 描述 live HTTP 服务依赖。Orders 与 Metrics 可为空。
type ServerConfig struct {
	Addr    string
	Bot     BotView
	Orders  OrderHistory
	Metrics http.Handler
}

// NewServer 构建 live HTTP server。
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Bot == nil {
		return nil, errors.New("live http server requires bot")
	}
	if cfg.Addr == "" {
		cfg.Addr = defaultAddr
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics))
	}
	NewRouter(cfg.Bot, cfg.Orders).Register(router.Group("/api/live"))

	return &Server{router: router, addr: cfg.Addr}, nil
}

// Handler 返回底层路由，便于测试直接驱动。
func (s *Server) Handler() http.Handler {
	return s.router
}

// requestLogger 以结构化字段记录每次调用；停止等人工操作提升到 info。
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"query", c.Request.URL.RawQuery,
			"status", c.Writer.Status(),
			"ip", c.ClientIP(),
			"dur", time.Since(start),
		}
		if c.Request.Method != http.MethodGet {
			logger.Slog().Info("http request", attrs...)
			return
		}
		logger.Slog().Debug("http request", attrs...)
	}
}

// Addr 返回监听地址；Start 之后为实际绑定的地址（":0" 时可取到端口）。
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// Start 监听并服务，ctx 取消后优雅关闭。
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.Addr(), err)
	}
	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.mu.Unlock()

	srv := &http.Server{Handler: s.router, ReadHeaderTimeout: readHeaderTimeout}
	errCh := make(chan error, 1)
	go func() {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()
	logger.Infof("live http listening on %s", ln.Addr())

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil {
			logger.Warnf("live http shutdown: %v", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}
