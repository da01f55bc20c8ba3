package lifecycle

import (
	"fmt"
	"time"

	"github.com/mmeshcher/catering-system/internal/calendar"
	"github.com/mmeshcher/catering-system/internal/model"
)

// DefaultPenaltyWindow задаёт число рабочих дней после доставки без штрафа.
const DefaultPenaltyWindow = 10

// PenaltyDecision описывает результат проверки заказа на штраф.
type PenaltyDecision struct {
	Deadline time.Time
	Due      bool
}

// AwaitingEquipment сообщает, что оборудование выдано, не возвращено, а заказ доставлен или завершён.
func AwaitingEquipment(o model.Order) bool {
	return o.EquipmentLoaned && !o.EquipmentReturned && o.Status.ReachedDelivery()
}

// PenaltyDue решает, пора ли отправлять уведомление о штрафе.
// Крайний срок наступает через window рабочих дней после DeliveredAt. Дни недели и начало
// календарного дня дедлайна определяются в часовом поясе loc.
func PenaltyDue(o model.Order, now time.Time, window int, loc *time.Location) (PenaltyDecision, error) {
	if !AwaitingEquipment(o) {
		return PenaltyDecision{}, nil
	}
	if o.DeliveredAt == nil {
		return PenaltyDecision{}, fmt.Errorf("%w: order %s has no delivery timestamp", ErrInconsistentState, o.Number)
	}

	if loc == nil {
		loc = time.UTC
	}
	deadline := calendar.AddBusinessDays(o.DeliveredAt.In(loc), window)
	if o.PenaltyNoticeSent {
		return PenaltyDecision{Deadline: deadline}, nil
	}

	return PenaltyDecision{
		Deadline: deadline,
		Due:      calendar.NotBefore(now, deadline, loc),
	}, nil
}

// MarkPenaltyNoticeSent взводит одноразовый флаг отправки штрафа.
func MarkPenaltyNoticeSent(o model.Order, now time.Time, window int, loc *time.Location) (model.Order, PenaltyDecision, error) {
	decision, err := PenaltyDue(o, now, window, loc)
	if err != nil {
		return o, decision, err
	}
	if decision.Due {
		o.PenaltyNoticeSent = true
	}
	return o, decision, nil
}
