package lifecycle

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/catering-system/internal/calendar"
	"github.com/mmeshcher/catering-system/internal/model"
)

// Refund описывает рассчитанный при отмене возврат.
type Refund struct {
	Percentage int
	Amount     decimal.Decimal
}

// Cancellation описывает результат отмены заказа.
type Cancellation struct {
	Transition
	Refund Refund
}

// RefundPercentage возвращает процент возврата по числу календарных дней до мероприятия.
func RefundPercentage(daysUntilService int) int {
	switch {
	case daysUntilService > 7:
		return 100
	case daysUntilService >= 3:
		return 50
	default:
		return 0
	}
}

// RefundAmount вычисляет сумму возврата с округлением до копеек.
func RefundAmount(total decimal.Decimal, percentage int) decimal.Decimal {
	return total.Mul(decimal.NewFromInt(int64(percentage))).Div(decimal.NewFromInt(100)).Round(2)
}

// CancelByCustomer отменяет заказ по шкале возвратов. Клиент может отменить только свой заказ,
// сотрудник может отменить любой, шкала при этом применяется так же.
// Дни до мероприятия считаются по календарным датам в часовом поясе loc.
func CancelByCustomer(o model.Order, actor model.Actor, now time.Time, reason string, loc *time.Location) (Cancellation, error) {
	if o.CustomerID != actor.UserID && !actor.Role.IsStaff() {
		return Cancellation{}, ErrForbidden
	}
	if err := checkCancellable(o); err != nil {
		return Cancellation{}, err
	}

	pct := RefundPercentage(calendar.DaysUntil(now, o.ServiceDate, loc))
	return cancel(o, actor, now, reason, pct), nil
}

// CancelByAdmin отменяет заказ администратором с полным возвратом независимо от даты мероприятия.
func CancelByAdmin(o model.Order, actor model.Actor, now time.Time, reason string) (Cancellation, error) {
	if actor.Role != model.RoleAdmin {
		return Cancellation{}, ErrForbidden
	}
	if err := checkCancellable(o); err != nil {
		return Cancellation{}, err
	}

	return cancel(o, actor, now, reason, 100), nil
}

func checkCancellable(o model.Order) error {
	switch o.Status {
	case model.StatusCancelled:
		return ErrAlreadyCancelled
	case model.StatusCompleted:
		return ErrAlreadyCompleted
	}
	if !o.Status.IsForward() {
		return ErrInconsistentState
	}
	return nil
}

func cancel(o model.Order, actor model.Actor, now time.Time, reason string, pct int) Cancellation {
	amount := RefundAmount(o.Total(), pct)

	tr := changeStatus(o, model.StatusCancelled, actor, now)
	tr.Order.CancellationReason = &reason
	tr.Order.RefundedAmount = &amount

	return Cancellation{
		Transition: tr,
		Refund: Refund{
			Percentage: pct,
			Amount:     amount,
		},
	}
}
