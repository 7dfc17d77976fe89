// Package binance 基于 go-binance SDK 实现现货 venue 与行情源。
package binance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gridbot/internal/gateway/exchange"
	"gridbot/internal/logger"
	"gridbot/internal/market"
	"gridbot/internal/pkg/symbol"
	"gridbot/internal/scheduler"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const (
	venueName       = "binance"
	maxHistoryLimit = 1000
	// codeUnknownOrder 撤单时订单已不存在。
	codeUnknownOrder = -2011
)

// Config 现货客户端参数。Sandbox 为 true 时连接 Binance 测试网。
type Config struct {
	APIKey             string
	APISecret          string
	RESTBaseURL        string
	Sandbox            bool
	HTTPTimeout        time.Duration
	RateLimitPerSecond float64
}

// Client 同时实现 exchange.Venue、exchange.OrderStatusQuerier 与 market.Source。
type Client struct {
	cfg     Config
	api     *gobinance.Client
	limiter *rate.Limiter
}

var (
	_ exchange.Venue              = (*Client)(nil)
	_ exchange.OrderStatusQuerier = (*Client)(nil)
	_ market.Source               = (*Client)(nil)
)

func New(cfg Config) (*Client, error) {
	final := cfg
	final.APIKey = strings.TrimSpace(final.APIKey)
	final.APISecret = strings.TrimSpace(final.APISecret)
	final.RESTBaseURL = strings.TrimSpace(final.RESTBaseURL)
	if final.HTTPTimeout <= 0 {
		final.HTTPTimeout = 15 * time.Second
	}
	if final.RateLimitPerSecond <= 0 {
		final.RateLimitPerSecond = 10
	}
	// go-binance 在 NewClient 时读取 UseTestnet 选择 base URL。
	gobinance.UseTestnet = final.Sandbox
	api := gobinance.NewClient(final.APIKey, final.APISecret)
	if final.RESTBaseURL != "" {
		api.BaseURL = final.RESTBaseURL
	}
	api.HTTPClient = &http.Client{Timeout: final.HTTPTimeout}
	burst := int(math.Ceil(final.RateLimitPerSecond))
	if burst < 1 {
		burst = 1
	}
	logger.Infof("binance client ready (sandbox=%v base=%s)", final.Sandbox, api.BaseURL)
	return &Client{
		cfg:     final,
		api:     api,
		limiter: rate.NewLimiter(rate.Limit(final.RateLimitPerSecond), burst),
	}, nil
}

func (c *Client) Name() string { return venueName }

func (c *Client) wait(ctx context.Context, op string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &exchange.NetworkError{Venue: venueName, Op: op, Err: err}
	}
	return nil
}

// LatestPrice 实现 market.Source。
func (c *Client) LatestPrice(ctx context.Context, sym string) (float64, error) {
	price, err := c.CurrentPrice(ctx, sym)
	if err != nil {
		return 0, err
	}
	f, _ := price.Float64()
	return f, nil
}

func (c *Client) CurrentPrice(ctx context.Context, sym string) (decimal.Decimal, error) {
	if err := c.wait(ctx, "price"); err != nil {
		return decimal.Zero, err
	}
	pair := symbol.ToBinance(sym)
	prices, err := c.api.NewListPricesService().Symbol(pair).Do(ctx)
	if err != nil {
		return decimal.Zero, classify("price", err)
	}
	for _, p := range prices {
		if p == nil || p.Symbol != pair {
			continue
		}
		v, err := decimal.NewFromString(p.Price)
		if err != nil {
			return decimal.Zero, &exchange.ExchangeError{Venue: venueName, Op: "price", Message: fmt.Sprintf("bad price %q", p.Price), Err: err}
		}
		return v, nil
	}
	return decimal.Zero, &exchange.ExchangeError{Venue: venueName, Op: "price", Message: "no price for " + pair}
}

// FetchHistory 返回已收盘 K 线（丢弃进行中的最后一根）。
func (c *Client) FetchHistory(ctx context.Context, sym, interval string, limit int) ([]market.Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return nil, fmt.Errorf("interval is required")
	}
	if err := c.wait(ctx, "klines"); err != nil {
		return nil, err
	}
	// 多取一根以抵消被丢弃的未收盘 K 线。
	kls, err := c.api.NewKlinesService().Symbol(symbol.ToBinance(sym)).Interval(interval).Limit(limit + 1).Do(ctx)
	if err != nil {
		return nil, classify("klines", err)
	}
	out := make([]market.Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, market.Candle{
			OpenTime:  kl.OpenTime,
			CloseTime: kl.CloseTime,
			Open:      parseFloat(kl.Open),
			High:      parseFloat(kl.High),
			Low:       parseFloat(kl.Low),
			Close:     parseFloat(kl.Close),
			Volume:    parseFloat(kl.Volume),
			Trades:    kl.TradeNum,
		})
	}
	if dur, ok := scheduler.ParseIntervalDuration(interval); ok {
		out = scheduler.DropUnclosedKline(out, dur)
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (c *Client) PriceHistory(ctx context.Context, sym, interval string, limit int) ([]float64, error) {
	candles, err := c.FetchHistory(ctx, sym, interval, limit)
	if err != nil {
		return nil, err
	}
	return market.Closes(candles), nil
}

func (c *Client) PlaceLimitOrder(ctx context.Context, sym string, side exchange.Side, qty, price decimal.Decimal) (exchange.OrderRecord, error) {
	if err := c.wait(ctx, "place"); err != nil {
		return exchange.OrderRecord{}, err
	}
	clientID := "grid-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
	resp, err := c.api.NewCreateOrderService().
		Symbol(symbol.ToBinance(sym)).
		Side(toSideType(side)).
		Type(gobinance.OrderTypeLimit).
		TimeInForce(gobinance.TimeInForceTypeGTC).
		Quantity(qty.String()).
		Price(price.String()).
		NewClientOrderID(clientID).
		Do(ctx)
	if err != nil {
		return exchange.OrderRecord{}, classify("place", err)
	}
	created := time.Now()
	if resp.TransactTime > 0 {
		created = time.UnixMilli(resp.TransactTime)
	}
	return exchange.OrderRecord{
		ID:        strconv.FormatInt(resp.OrderID, 10),
		ClientID:  resp.ClientOrderID,
		Symbol:    sym,
		Side:      side,
		Price:     price,
		Quantity:  qty,
		Status:    fromOrderStatus(resp.Status),
		CreatedAt: created,
		UpdatedAt: created,
	}, nil
}

func (c *Client) CancelOrder(ctx context.Context, sym, orderID string) (bool, error) {
	if err := c.wait(ctx, "cancel"); err != nil {
		return false, err
	}
	svc := c.api.NewCancelOrderService().Symbol(symbol.ToBinance(sym))
	if id, err := strconv.ParseInt(orderID, 10, 64); err == nil {
		svc = svc.OrderID(id)
	} else {
		svc = svc.OrigClientOrderID(orderID)
	}
	if _, err := svc.Do(ctx); err != nil {
		var apiErr *common.APIError
		if errors.As(err, &apiErr) && apiErr.Code == codeUnknownOrder {
			return false, nil
		}
		return false, classify("cancel", err)
	}
	return true, nil
}

func (c *Client) OpenOrders(ctx context.Context, sym string) ([]exchange.OrderRecord, error) {
	if err := c.wait(ctx, "open_orders"); err != nil {
		return nil, err
	}
	orders, err := c.api.NewListOpenOrdersService().Symbol(symbol.ToBinance(sym)).Do(ctx)
	if err != nil {
		return nil, classify("open_orders", err)
	}
	out := make([]exchange.OrderRecord, 0, len(orders))
	for _, o := range orders {
		if o == nil {
			continue
		}
		out = append(out, toOrderRecord(sym, o))
	}
	return out, nil
}

func (c *Client) OrderStatus(ctx context.Context, sym, orderID string) (exchange.Status, error) {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("binance order id %q is not numeric", orderID)
	}
	if err := c.wait(ctx, "order_status"); err != nil {
		return "", err
	}
	o, err := c.api.NewGetOrderService().Symbol(symbol.ToBinance(sym)).OrderID(id).Do(ctx)
	if err != nil {
		return "", classify("order_status", err)
	}
	return fromOrderStatus(o.Status), nil
}

func toOrderRecord(sym string, o *gobinance.Order) exchange.OrderRecord {
	side := exchange.SideBuy
	if o.Side == gobinance.SideTypeSell {
		side = exchange.SideSell
	}
	price, _ := decimal.NewFromString(o.Price)
	qty, _ := decimal.NewFromString(o.OrigQuantity)
	return exchange.OrderRecord{
		ID:        strconv.FormatInt(o.OrderID, 10),
		ClientID:  o.ClientOrderID,
		Symbol:    sym,
		Side:      side,
		Price:     price,
		Quantity:  qty,
		Status:    fromOrderStatus(o.Status),
		CreatedAt: time.UnixMilli(o.Time),
		UpdatedAt: time.UnixMilli(o.UpdateTime),
	}
}

func toSideType(side exchange.Side) gobinance.SideType {
	if side == exchange.SideSell {
		return gobinance.SideTypeSell
	}
	return gobinance.SideTypeBuy
}

func fromOrderStatus(st gobinance.OrderStatusType) exchange.Status {
	switch st {
	case gobinance.OrderStatusTypeFilled:
		return exchange.StatusFilled
	case gobinance.OrderStatusTypeCanceled, gobinance.OrderStatusTypeExpired, gobinance.OrderStatusTypeRejected:
		return exchange.StatusCancelled
	default:
		return exchange.StatusOpen
	}
}

// classify 将 go-binance 的 APIError 映射为 ExchangeError，其余交给通用分类。
func classify(op string, err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return &exchange.ExchangeError{
			Venue:   venueName,
			Op:      op,
			Code:    strconv.FormatInt(apiErr.Code, 10),
			Message: apiErr.Message,
			Err:     err,
		}
	}
	return exchange.ClassifyTransport(venueName, op, err)
}

func parseFloat(v string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return f
}
