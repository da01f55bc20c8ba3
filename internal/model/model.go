// Package model содержит доменные сущности сервиса заказов кейтеринга.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Role описывает роль пользователя в системе.
type Role string

const (
	RoleClient   Role = "client"
	RoleEmployee Role = "employee"
	RoleAdmin    Role = "admin"
)

// Valid сообщает, является ли роль известной.
func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleEmployee, RoleAdmin:
		return true
	}
	return false
}

// IsStaff сообщает, обладает ли роль правами сотрудника.
func (r Role) IsStaff() bool {
	return r == RoleEmployee || r == RoleAdmin
}

// User представляет зарегистрированного пользователя.
type User struct {
	ID           int64
	Email        string
	PasswordHash []byte
	Role         Role
	CreatedAt    time.Time
}

// Actor описывает того, кто выполняет действие над заказом.
type Actor struct {
	UserID int64
	Role   Role
}

// Menu описывает меню каталога, по которому оформляется заказ.
type Menu struct {
	ID             int64           `json:"id"`
	Title          string          `json:"title"`
	PricePerPerson decimal.Decimal `json:"price_per_person"`
	MinPersons     int             `json:"min_persons"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Order описывает заказ клиента вместе с рабочими полями жизненного цикла.
type Order struct {
	ID          uuid.UUID
	Number      string
	CustomerID  int64
	MenuID      int64
	CreatedAt   time.Time
	ServiceDate time.Time
	// DeliveryTime хранится в формате HH:MM.
	DeliveryTime    string
	MenuPrice       decimal.Decimal
	DeliveryPrice   decimal.Decimal
	Headcount       int
	DeliveryAddress string
	DeliveryCity    string

	Status             OrderStatus
	EquipmentLoaned    bool
	EquipmentReturned  bool
	DeliveredAt        *time.Time
	AwaitingReturnAt   *time.Time
	PenaltyNoticeSent  bool
	CancellationReason *string
	RefundedAmount     *decimal.Decimal
}

// Total возвращает полную стоимость заказа: меню плюс доставка.
func (o Order) Total() decimal.Decimal {
	return o.MenuPrice.Add(o.DeliveryPrice)
}

// StatusHistoryEntry описывает запись журнала смены статусов заказа.
type StatusHistoryEntry struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	Status    OrderStatus
	ChangedAt time.Time
	ChangedBy int64
}

// Review описывает отзыв клиента о выполненном заказе.
type Review struct {
	ID         int64
	OrderID    uuid.UUID
	CustomerID int64
	Rating     int
	Comment    string
	CreatedAt  time.Time
}
