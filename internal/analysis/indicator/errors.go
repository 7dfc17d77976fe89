package indicator

import "fmt"

// InsufficientDataError 表示价格序列长度不足以计算指标。
type InsufficientDataError struct {
	Indicator string
	Need      int
	Have      int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: insufficient data, need %d prices, have %d", e.Indicator, e.Need, e.Have)
}

func insufficient(name string, need, have int) error {
	return &InsufficientDataError{Indicator: name, Need: need, Have: have}
}
