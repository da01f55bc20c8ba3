// Package notify доставляет клиентам уведомления о событиях жизненного цикла заказа.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/catering-system/internal/model"
)

// EventType определяет тип уведомления, по которому выбирается шаблон.
type EventType string

const (
	EventOrderAccepted    EventType = "order_accepted"
	EventOrderInDelivery  EventType = "order_in_delivery"
	EventOrderCompleted   EventType = "order_completed"
	EventOrderCancelled   EventType = "order_cancelled"
	EventEquipmentPenalty EventType = "equipment_penalty"
)

// ErrNoRecipient возвращается, если для канала доставки не хватает адреса получателя.
var ErrNoRecipient = errors.New("notification recipient address is empty")

// Event описывает одно уведомление получателю.
type Event struct {
	Type             EventType        `json:"type"`
	RecipientID      int64            `json:"recipient_id"`
	RecipientEmail   string           `json:"recipient_email,omitempty"`
	OrderNumber      string           `json:"order_number"`
	ServiceDate      time.Time        `json:"service_date"`
	RefundPercentage *int             `json:"refund_percentage,omitempty"`
	Amount           *decimal.Decimal `json:"amount,omitempty"`
	Deadline         *time.Time       `json:"deadline,omitempty"`
	OccurredAt       time.Time        `json:"occurred_at"`
}

// Dispatcher отправляет уведомления.
type Dispatcher interface {
	Send(ctx context.Context, e Event) error
}

// StatusEvent возвращает тип уведомления для смены статуса.
func StatusEvent(s model.OrderStatus) EventType {
	return EventType("order_" + s.String())
}

// Policy определяет, при каких статусах клиент получает уведомление.
type Policy struct {
	statuses map[model.OrderStatus]struct{}
}

// DefaultNotifyStatuses перечисляет статусы, о которых клиент уведомляется по умолчанию.
var DefaultNotifyStatuses = []model.OrderStatus{
	model.StatusAccepted,
	model.StatusInDelivery,
	model.StatusCompleted,
}

// NewPolicy создаёт политику для указанных прямых статусов.
func NewPolicy(statuses ...model.OrderStatus) Policy {
	p := Policy{statuses: make(map[model.OrderStatus]struct{}, len(statuses))}
	for _, s := range statuses {
		if s.IsForward() {
			p.statuses[s] = struct{}{}
		}
	}
	return p
}

// DefaultPolicy возвращает политику по умолчанию.
func DefaultPolicy() Policy {
	return NewPolicy(DefaultNotifyStatuses...)
}

// ParsePolicy разбирает список текстовых кодов статусов.
func ParsePolicy(codes []string) (Policy, error) {
	statuses := make([]model.OrderStatus, 0, len(codes))
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		s, err := model.ParseOrderStatus(code)
		if err != nil {
			return Policy{}, err
		}
		if !s.IsForward() {
			return Policy{}, fmt.Errorf("status %q cannot trigger a status notification", code)
		}
		statuses = append(statuses, s)
	}
	return NewPolicy(statuses...), nil
}

// EventFor возвращает тип уведомления для статуса, если политика его включает.
func (p Policy) EventFor(s model.OrderStatus) (EventType, bool) {
	if _, ok := p.statuses[s]; !ok {
		return "", false
	}
	return StatusEvent(s), true
}

// String возвращает коды статусов политики через запятую.
func (p Policy) String() string {
	codes := make([]string, 0, len(p.statuses))
	for _, s := range model.ForwardStatuses {
		if _, ok := p.statuses[s]; ok {
			codes = append(codes, s.String())
		}
	}
	return strings.Join(codes, ",")
}
