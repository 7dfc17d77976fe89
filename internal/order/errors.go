package order

import (
	"fmt"

	"gridbot/internal/strategy"
)

// InvalidOrderError 表示意图价格或数量非正，该意图被跳过。
type InvalidOrderError struct {
	Intent strategy.Intent
}

func (e *InvalidOrderError) Error() string {
	return fmt.Sprintf("invalid %s order: price=%s quantity=%s", e.Intent.Side, e.Intent.Price, e.Intent.Quantity)
}
