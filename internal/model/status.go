package model

import "fmt"

// OrderStatus задаёт закрытое перечисление статусов заказа.
// Прямые статусы упорядочены по рангу, Cancelled находится вне этой последовательности.
type OrderStatus uint8

const (
	StatusUnknown OrderStatus = iota
	StatusPending
	StatusAccepted
	StatusInPreparation
	StatusInDelivery
	StatusDelivered
	StatusAwaitingReturn
	StatusCompleted
	StatusCancelled
)

var statusCodes = map[OrderStatus]string{
	StatusPending:        "pending",
	StatusAccepted:       "accepted",
	StatusInPreparation:  "in_preparation",
	StatusInDelivery:     "in_delivery",
	StatusDelivered:      "delivered",
	StatusAwaitingReturn: "awaiting_return",
	StatusCompleted:      "completed",
	StatusCancelled:      "cancelled",
}

// ForwardStatuses перечисляет прямые статусы в порядке возрастания ранга.
var ForwardStatuses = []OrderStatus{
	StatusPending,
	StatusAccepted,
	StatusInPreparation,
	StatusInDelivery,
	StatusDelivered,
	StatusAwaitingReturn,
	StatusCompleted,
}

// Rank возвращает позицию статуса в прямой последовательности (1..7)
// и false для Cancelled и неизвестных значений.
func (s OrderStatus) Rank() (int, bool) {
	if s >= StatusPending && s <= StatusCompleted {
		return int(s), true
	}
	return 0, false
}

// IsForward сообщает, входит ли статус в прямую последовательность.
func (s OrderStatus) IsForward() bool {
	_, ok := s.Rank()
	return ok
}

// IsTerminal сообщает, является ли статус конечным.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ReachedDelivery сообщает, что заказ доставлен или продвинулся дальше доставки.
func (s OrderStatus) ReachedDelivery() bool {
	return s >= StatusDelivered && s <= StatusCompleted
}

func (s OrderStatus) String() string {
	if code, ok := statusCodes[s]; ok {
		return code
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// ParseOrderStatus разбирает текстовый код статуса.
func ParseOrderStatus(code string) (OrderStatus, error) {
	for s, c := range statusCodes {
		if c == code {
			return s, nil
		}
	}
	return StatusUnknown, fmt.Errorf("unknown order status %q", code)
}

// MarshalText кодирует статус текстовым кодом.
func (s OrderStatus) MarshalText() ([]byte, error) {
	code, ok := statusCodes[s]
	if !ok {
		return nil, fmt.Errorf("unknown order status %d", uint8(s))
	}
	return []byte(code), nil
}

// UnmarshalText декодирует статус из текстового кода.
func (s *OrderStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseOrderStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
