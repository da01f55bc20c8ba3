package lifecycle

import (
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/catering-system/internal/model"
)

// Transition описывает результат успешной смены статуса: новый снимок заказа и запись журнала.
type Transition struct {
	Order   model.Order
	Entry   model.StatusHistoryEntry
	Changed bool
}

// Advance переводит заказ в следующий статус по прямой последовательности.
// Повторная отправка текущего статуса отклоняется так же, как и откат назад.
func Advance(o model.Order, requested model.OrderStatus, actor model.Actor, now time.Time) (Transition, error) {
	if !actor.Role.IsStaff() {
		return Transition{}, ErrForbidden
	}

	newRank, ok := requested.Rank()
	if !ok {
		return Transition{}, ErrInvalidStatus
	}

	if o.Status == model.StatusCancelled {
		return Transition{}, ErrAlreadyCancelled
	}

	curRank, ok := o.Status.Rank()
	if !ok {
		return Transition{}, ErrInconsistentState
	}

	if newRank <= curRank {
		return Transition{}, &IllegalRegressionError{From: o.Status, To: requested}
	}

	return changeStatus(o, requested, actor, now), nil
}

// changeStatus применяет новый статус к копии заказа и проставляет временные метки.
func changeStatus(o model.Order, status model.OrderStatus, actor model.Actor, now time.Time) Transition {
	prev := o.Status
	o.Status = status
	stampTimestamps(&o, prev, now)

	return Transition{
		Order: o,
		Entry: model.StatusHistoryEntry{
			ID:        uuid.New(),
			OrderID:   o.ID,
			Status:    status,
			ChangedAt: now,
			ChangedBy: actor.UserID,
		},
		Changed: prev != status,
	}
}

// stampTimestamps проставляет DeliveredAt при первом достижении доставки и AwaitingReturnAt
// при переходе в AwaitingReturn.
// DeliveredAt никогда не перезаписывается.
func stampTimestamps(o *model.Order, prev model.OrderStatus, now time.Time) {
	if o.Status == prev {
		return
	}

	// Переход через Delivered без остановки тоже означает доставку.
	if o.Status.ReachedDelivery() && !prev.ReachedDelivery() && o.DeliveredAt == nil {
		t := now
		o.DeliveredAt = &t
	}
	if o.Status == model.StatusAwaitingReturn {
		t := now
		o.AwaitingReturnAt = &t
	}
}

// MarkEquipmentReturned отмечает возврат выданного оборудования.
func MarkEquipmentReturned(o model.Order, actor model.Actor) (model.Order, error) {
	if !actor.Role.IsStaff() {
		return o, ErrForbidden
	}
	if !o.EquipmentLoaned {
		return o, ErrNotLoaned
	}
	o.EquipmentReturned = true
	return o, nil
}
