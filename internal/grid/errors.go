package grid

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// InvalidRangeError 表示网格参数不合法（区间、数量或资金）。
type InvalidRangeError struct {
	Lower   decimal.Decimal
	Upper   decimal.Decimal
	Count   int
	Capital decimal.Decimal
	Reason  string
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid grid range [%s, %s] count=%d capital=%s: %s",
		e.Lower, e.Upper, e.Count, e.Capital, e.Reason)
}

// OutOfRangeError 表示当前价格不在网格区间内，无法动态重算。
type OutOfRangeError struct {
	Price decimal.Decimal
	Lower decimal.Decimal
	Upper decimal.Decimal
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("price %s is out of grid range [%s, %s]", e.Price, e.Lower, e.Upper)
}
