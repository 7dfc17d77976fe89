package livehttp

import (
	"context"
	"net/http"
	"strconv"

	"gridbot/internal/engine"
	"gridbot/internal/gateway/exchange"
	"gridbot/internal/performance"

	"github.com/gin-gonic/gin"
)

const (
	defaultOrderLimit = 50
	maxOrderLimit     = 500
)

// BotView 是 HTTP 层对引擎的最小依赖。
type BotView interface {
	Status() engine.Status
	Trades() []performance.Trade
	Stop()
}

// OrderHistory 提供已落盘的订单流水。
type OrderHistory interface {
	RecentOrders(ctx context.Context, limit int) ([]exchange.OrderRecord, error)
}

// Router 挂载 /api/live 下的查询与控制接口。
type Router struct {
	Bot    BotView
	Orders OrderHistory
}

func NewRouter(bot BotView, orders OrderHistory) *Router {
	return &Router{Bot: bot, Orders: orders}
}

// Register 将路由挂载到给定分组下。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/status", r.handleStatus)
	group.GET("/grid", r.handleGrid)
	group.GET("/orders", r.handleOrders)
	group.GET("/orders/history", r.handleOrderHistory)
	group.GET("/trades", r.handleTrades)
	group.POST("/stop", r.handleStop)
}

func (r *Router) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, r.Bot.Status())
}

func (r *Router) handleGrid(c *gin.Context) {
	st := r.Bot.Status()
	c.JSON(http.StatusOK, gin.H{"symbol": st.Symbol, "grid": st.Grid})
}

func (r *Router) handleOrders(c *gin.Context) {
	st := r.Bot.Status()
	orders := st.ActiveOrders
	if orders == nil {
		orders = []exchange.OrderRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"symbol": st.Symbol, "orders": orders})
}

func (r *Router) handleOrderHistory(c *gin.Context) {
	if r.Orders == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "order journal disabled"})
		return
	}
	limit := defaultOrderLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxOrderLimit)
	}
	orders, err := r.Orders.RecentOrders(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if orders == nil {
		orders = []exchange.OrderRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (r *Router) handleTrades(c *gin.Context) {
	trades := r.Bot.Trades()
	if trades == nil {
		trades = []performance.Trade{}
	}
	st := r.Bot.Status()
	c.JSON(http.StatusOK, gin.H{"trades": trades, "performance_metrics": st.Metrics})
}

func (r *Router) handleStop(c *gin.Context) {
	r.Bot.Stop()
	c.JSON(http.StatusAccepted, gin.H{"status": "stopping"})
}
