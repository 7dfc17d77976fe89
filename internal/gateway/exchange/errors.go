package exchange

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// NetworkError 表示传输层故障（超时、连接失败），下一轮重试即可。
type NetworkError struct {
	Venue string
	Op    string
	Err   error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: network error: %v", e.Venue, e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ExchangeError 表示 venue 拒绝了请求（参数、余额、权限等）。
type ExchangeError struct {
	Venue   string
	Op      string
	Code    string
	Message string
	Err     error
}

func (e *ExchangeError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s %s: exchange error %s: %s", e.Venue, e.Op, e.Code, e.Message)
	}
	return fmt.Sprintf("%s %s: exchange error: %s", e.Venue, e.Op, e.Message)
}

func (e *ExchangeError) Unwrap() error { return e.Err }

// ClassifyTransport 将 net.Error / 超时 归为 NetworkError，其余归为 ExchangeError。
// 各 venue 在识别出自己的 API 错误类型后再调用此函数兜底。
func ClassifyTransport(venue, op string, err error) error {
	if err == nil {
		return nil
	}
	var netErr *NetworkError
	var exErr *ExchangeError
	if errors.As(err, &netErr) || errors.As(err, &exErr) {
		return err
	}
	var ne net.Error
	if errors.As(err, &ne) || errors.Is(err, context.DeadlineExceeded) {
		return &NetworkError{Venue: venue, Op: op, Err: err}
	}
	return &ExchangeError{Venue: venue, Op: op, Message: err.Error(), Err: err}
}

// IsVenueError 判断错误是否来自 venue（网络或交易所拒绝）。
func IsVenueError(err error) bool {
	var netErr *NetworkError
	var exErr *ExchangeError
	return errors.As(err, &netErr) || errors.As(err, &exErr)
}
