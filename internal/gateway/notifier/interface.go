package notifier

import "context"

// TextNotifier 是最小通知接口，引擎只依赖它而不依赖具体渠道。
type TextNotifier interface {
	SendText(ctx context.Context, text string) error
}

// Noop 丢弃所有消息，未启用通知时使用。
type Noop struct{}

func (Noop) SendText(context.Context, string) error { return nil }
