package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/catering-system/internal/activity"
	"github.com/mmeshcher/catering-system/internal/calendar"
	"github.com/mmeshcher/catering-system/internal/lifecycle"
	"github.com/mmeshcher/catering-system/internal/model"
	"github.com/mmeshcher/catering-system/internal/notify"
	"github.com/mmeshcher/catering-system/internal/repository"
	"github.com/mmeshcher/catering-system/internal/validation"
)

const orderNumberAttempts = 5

// PlaceOrderInput содержит данные нового заказа.
type PlaceOrderInput struct {
	MenuID          int64
	ServiceDate     time.Time
	DeliveryTime    string
	Headcount       int
	DeliveryAddress string
	DeliveryCity    string
	EquipmentLoaned bool
}

// OrderDetails содержит заказ вместе с журналом статусов.
type OrderDetails struct {
	Order   model.Order
	History []model.StatusHistoryEntry
}

// PlaceOrder оформляет заказ клиента в статусе pending.
func (s *Service) PlaceOrder(ctx context.Context, actor model.Actor, in PlaceOrderInput) (*model.Order, error) {
	menu, err := s.repo.GetMenu(ctx, in.MenuID)
	if err != nil {
		return nil, err
	}
	if in.Headcount < menu.MinPersons {
		return nil, fmt.Errorf("%w: %d < %d", ErrHeadcountTooLow, in.Headcount, menu.MinPersons)
	}

	now := s.now()
	if calendar.DaysUntil(now, in.ServiceDate, s.opts.Location) < 0 {
		return nil, ErrServiceDatePast
	}

	o := model.Order{
		ID:              uuid.New(),
		CustomerID:      actor.UserID,
		MenuID:          menu.ID,
		CreatedAt:       now.UTC(),
		ServiceDate:     in.ServiceDate,
		DeliveryTime:    in.DeliveryTime,
		MenuPrice:       menu.PricePerPerson.Mul(decimal.NewFromInt(int64(in.Headcount))).Round(2),
		DeliveryPrice:   s.deliveryPrice(in.DeliveryCity),
		Headcount:       in.Headcount,
		DeliveryAddress: in.DeliveryAddress,
		DeliveryCity:    in.DeliveryCity,
		Status:          model.StatusPending,
		EquipmentLoaned: in.EquipmentLoaned,
	}
	entry := model.StatusHistoryEntry{
		ID:        uuid.New(),
		OrderID:   o.ID,
		Status:    model.StatusPending,
		ChangedAt: o.CreatedAt,
		ChangedBy: actor.UserID,
	}

	for attempt := 1; ; attempt++ {
		o.Number, err = validation.NewOrderNumber()
		if err != nil {
			return nil, fmt.Errorf("generate order number: %w", err)
		}

		err = s.repo.CreateOrder(ctx, o, entry)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrOrderNumberTaken) || attempt == orderNumberAttempts {
			return nil, err
		}
		s.logger.Debug("order number collision, regenerating", zap.String("order", o.Number))
	}

	s.logger.Info("order placed", zap.String("order", o.Number), zap.Int64("customer", o.CustomerID))
	s.record(ctx, actor, activity.EventOrderPlaced, map[string]any{
		"order_number": o.Number,
		"menu_id":      o.MenuID,
		"headcount":    o.Headcount,
		"total":        o.Total().StringFixed(2),
	})

	return &o, nil
}

func (s *Service) deliveryPrice(city string) decimal.Decimal {
	if s.opts.HomeCity != "" && strings.EqualFold(strings.TrimSpace(city), s.opts.HomeCity) {
		return decimal.Zero
	}
	return s.opts.DeliveryFee
}

// GetOrder возвращает заказ с журналом статусов. Клиент видит только свои заказы.
func (s *Service) GetOrder(ctx context.Context, actor model.Actor, number string) (*OrderDetails, error) {
	o, err := s.repo.GetOrderByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if o.CustomerID != actor.UserID && !actor.Role.IsStaff() {
		return nil, lifecycle.ErrForbidden
	}

	history, err := s.repo.GetStatusHistory(ctx, o.ID)
	if err != nil {
		return nil, err
	}

	return &OrderDetails{Order: *o, History: history}, nil
}

// ListOrdersForCustomer возвращает заказы текущего клиента.
func (s *Service) ListOrdersForCustomer(ctx context.Context, actor model.Actor) ([]model.Order, error) {
	return s.repo.GetOrdersByCustomer(ctx, actor.UserID)
}

// ListOrdersByStatus возвращает заказы в статусе; доступно только сотрудникам.
func (s *Service) ListOrdersByStatus(ctx context.Context, actor model.Actor, status model.OrderStatus) ([]model.Order, error) {
	if !actor.Role.IsStaff() {
		return nil, lifecycle.ErrForbidden
	}
	if status == model.StatusUnknown {
		return nil, lifecycle.ErrInvalidStatus
	}
	return s.repo.GetOrdersByStatus(ctx, status)
}

// AdvanceOrderStatus переводит заказ в следующий статус и уведомляет клиента по политике уведомлений.
func (s *Service) AdvanceOrderStatus(ctx context.Context, actor model.Actor, number string, status model.OrderStatus) (*model.Order, error) {
	var tr lifecycle.Transition

	updated, err := s.repo.UpdateOrder(ctx, number, func(o model.Order) (model.Order, *model.StatusHistoryEntry, error) {
		var err error
		tr, err = lifecycle.Advance(o, status, actor, s.now())
		if err != nil {
			return o, nil, err
		}
		return tr.Order, &tr.Entry, nil
	})
	if err != nil {
		return nil, err
	}

	if !tr.Changed {
		return &updated, nil
	}

	s.logger.Info("order status changed",
		zap.String("order", updated.Number), zap.Stringer("status", updated.Status), zap.Int64("by", actor.UserID))
	s.record(ctx, actor, activity.EventOrderStatusChanged, map[string]any{
		"order_number": updated.Number,
		"status":       updated.Status.String(),
	})

	if eventType, ok := s.opts.Policy.EventFor(updated.Status); ok {
		s.notify(ctx, notify.Event{
			Type:        eventType,
			RecipientID: updated.CustomerID,
			OrderNumber: updated.Number,
			ServiceDate: updated.ServiceDate,
		})
	}

	return &updated, nil
}

// CustomerCancelOrder отменяет заказ со шкалой возвратов по дате мероприятия.
func (s *Service) CustomerCancelOrder(ctx context.Context, actor model.Actor, number, reason string) (lifecycle.Refund, error) {
	return s.cancelOrder(ctx, actor, number, func(o model.Order, now time.Time) (lifecycle.Cancellation, error) {
		return lifecycle.CancelByCustomer(o, actor, now, reason, s.opts.Location)
	})
}

// AdminCancelOrder отменяет заказ администратором с полным возвратом.
func (s *Service) AdminCancelOrder(ctx context.Context, actor model.Actor, number, reason string) (lifecycle.Refund, error) {
	return s.cancelOrder(ctx, actor, number, func(o model.Order, now time.Time) (lifecycle.Cancellation, error) {
		return lifecycle.CancelByAdmin(o, actor, now, reason)
	})
}

func (s *Service) cancelOrder(
	ctx context.Context,
	actor model.Actor,
	number string,
	cancel func(o model.Order, now time.Time) (lifecycle.Cancellation, error),
) (lifecycle.Refund, error) {
	var c lifecycle.Cancellation

	updated, err := s.repo.UpdateOrder(ctx, number, func(o model.Order) (model.Order, *model.StatusHistoryEntry, error) {
		var err error
		c, err = cancel(o, s.now())
		if err != nil {
			return o, nil, err
		}
		return c.Order, &c.Entry, nil
	})
	if err != nil {
		return lifecycle.Refund{}, err
	}

	s.logger.Info("order cancelled",
		zap.String("order", updated.Number),
		zap.Int("refund_percentage", c.Refund.Percentage),
		zap.String("refund_amount", c.Refund.Amount.StringFixed(2)),
		zap.Int64("by", actor.UserID))
	s.record(ctx, actor, activity.EventOrderCancelled, map[string]any{
		"order_number":      updated.Number,
		"refund_percentage": c.Refund.Percentage,
		"refund_amount":     c.Refund.Amount.StringFixed(2),
	})

	pct := c.Refund.Percentage
	amount := c.Refund.Amount
	s.notify(ctx, notify.Event{
		Type:             notify.EventOrderCancelled,
		RecipientID:      updated.CustomerID,
		OrderNumber:      updated.Number,
		ServiceDate:      updated.ServiceDate,
		RefundPercentage: &pct,
		Amount:           &amount,
	})

	return c.Refund, nil
}

// MarkEquipmentReturned отмечает возврат оборудования по заказу.
func (s *Service) MarkEquipmentReturned(ctx context.Context, actor model.Actor, number string) (*model.Order, error) {
	updated, err := s.repo.UpdateOrder(ctx, number, func(o model.Order) (model.Order, *model.StatusHistoryEntry, error) {
		next, err := lifecycle.MarkEquipmentReturned(o, actor)
		return next, nil, err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("equipment returned", zap.String("order", updated.Number), zap.Int64("by", actor.UserID))
	s.record(ctx, actor, activity.EventEquipmentReturned, map[string]any{
		"order_number": updated.Number,
	})

	return &updated, nil
}

// CreateReview сохраняет отзыв клиента о завершённом заказе.
func (s *Service) CreateReview(ctx context.Context, actor model.Actor, number string, rating int, comment string) (*model.Review, error) {
	o, err := s.repo.GetOrderByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if o.CustomerID != actor.UserID {
		return nil, lifecycle.ErrForbidden
	}
	if o.Status != model.StatusCompleted {
		return nil, ErrReviewNotAllowed
	}

	return s.repo.CreateReview(ctx, model.Review{
		OrderID:    o.ID,
		CustomerID: actor.UserID,
		Rating:     rating,
		Comment:    comment,
	})
}
