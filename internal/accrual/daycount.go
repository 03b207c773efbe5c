package accrual

import (
	"time"

	"github.com/shopspring/decimal"

	commonerr "github.com/quantfabric/swapflow/common/errors"
	"github.com/quantfabric/swapflow/internal/model"
)

var (
	days360 = decimal.NewFromInt(360)
	days365 = decimal.NewFromInt(365)
)

// YearFraction converts the [start, end) interval into a fraction of a year
// under the given convention. A misconfigured convention is a calculation
// error, never a silent default.
func YearFraction(start, end time.Time, conv model.DayCountConvention) (decimal.Decimal, error) {
	switch conv {
	case model.DayCountAct360:
		return calendarDays(start, end).Div(days360), nil
	case model.DayCountAct365F:
		return calendarDays(start, end).Div(days365), nil
	case model.DayCount30360:
		// 30E/360 Eurobond basis: day-of-month capped at 30.
		d1 := min(start.Day(), 30)
		d2 := min(end.Day(), 30)
		n := 360*(end.Year()-start.Year()) + 30*(int(end.Month())-int(start.Month())) + (d2 - d1)
		return decimal.NewFromInt(int64(n)).Div(days360), nil
	default:
		return decimal.Decimal{}, commonerr.E(commonerr.KindCalculation, "unsupported day count convention %q", conv)
	}
}

func calendarDays(start, end time.Time) decimal.Decimal {
	d := model.DateOnly(end).Sub(model.DateOnly(start)).Hours() / 24
	return decimal.NewFromInt(int64(d))
}
