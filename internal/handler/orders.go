package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/catering-system/internal/lifecycle"
	"github.com/mmeshcher/catering-system/internal/model"
	"github.com/mmeshcher/catering-system/internal/service"
	"github.com/mmeshcher/catering-system/internal/validation"
)

const dateLayout = "2006-01-02"

type orderResponse struct {
	Number            string            `json:"number"`
	Status            model.OrderStatus `json:"status"`
	MenuID            int64             `json:"menu_id"`
	ServiceDate       string            `json:"service_date"`
	DeliveryTime      string            `json:"delivery_time"`
	Headcount         int               `json:"headcount"`
	DeliveryAddress   string            `json:"delivery_address"`
	DeliveryCity      string            `json:"delivery_city"`
	MenuPrice         string            `json:"menu_price"`
	DeliveryPrice     string            `json:"delivery_price"`
	Total             string            `json:"total"`
	EquipmentLoaned   bool              `json:"equipment_loaned"`
	EquipmentReturned bool              `json:"equipment_returned"`
	DeliveredAt       *time.Time        `json:"delivered_at,omitempty"`
	AwaitingReturnAt  *time.Time        `json:"awaiting_return_at,omitempty"`
	PenaltyNoticeSent bool              `json:"penalty_notice_sent"`
	CancellationNote  *string           `json:"cancellation_reason,omitempty"`
	RefundedAmount    *string           `json:"refunded_amount,omitempty"`
	CreatedAt         string            `json:"created_at"`
}

type historyResponse struct {
	Status    model.OrderStatus `json:"status"`
	ChangedAt string            `json:"changed_at"`
	ChangedBy int64             `json:"changed_by"`
}

type orderDetailsResponse struct {
	orderResponse
	History []historyResponse `json:"history"`
}

func newOrderResponse(o model.Order) orderResponse {
	resp := orderResponse{
		Number:            o.Number,
		Status:            o.Status,
		MenuID:            o.MenuID,
		ServiceDate:       o.ServiceDate.Format(dateLayout),
		DeliveryTime:      o.DeliveryTime,
		Headcount:         o.Headcount,
		DeliveryAddress:   o.DeliveryAddress,
		DeliveryCity:      o.DeliveryCity,
		MenuPrice:         o.MenuPrice.StringFixed(2),
		DeliveryPrice:     o.DeliveryPrice.StringFixed(2),
		Total:             o.Total().StringFixed(2),
		EquipmentLoaned:   o.EquipmentLoaned,
		EquipmentReturned: o.EquipmentReturned,
		DeliveredAt:       o.DeliveredAt,
		AwaitingReturnAt:  o.AwaitingReturnAt,
		PenaltyNoticeSent: o.PenaltyNoticeSent,
		CancellationNote:  o.CancellationReason,
		CreatedAt:         o.CreatedAt.Format(time.RFC3339),
	}
	if o.RefundedAmount != nil {
		v := o.RefundedAmount.StringFixed(2)
		resp.RefundedAmount = &v
	}
	return resp
}

func newOrderList(orders []model.Order) []orderResponse {
	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, newOrderResponse(o))
	}
	return resp
}

// orderNumber достаёт номер заказа из пути и проверяет его по алгоритму Луна.
func orderNumber(w http.ResponseWriter, r *http.Request) (string, bool) {
	number := chi.URLParam(r, "number")
	if !validation.IsValidOrderNumber(number) {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return "", false
	}
	return number, true
}

type placeOrderRequest struct {
	MenuID          int64  `json:"menu_id" validate:"required,gt=0"`
	ServiceDate     string `json:"service_date" validate:"required,datetime=2006-01-02"`
	DeliveryTime    string `json:"delivery_time" validate:"required,datetime=15:04"`
	Headcount       int    `json:"headcount" validate:"required,gte=1"`
	DeliveryAddress string `json:"delivery_address" validate:"required,max=300"`
	DeliveryCity    string `json:"delivery_city" validate:"required,max=100"`
	EquipmentLoaned bool   `json:"equipment_loaned"`
}

// PlaceOrder оформляет новый заказ текущего клиента.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req placeOrderRequest
	if err := h.decode(r, &req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	serviceDate, err := time.Parse(dateLayout, req.ServiceDate)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	o, err := h.service.PlaceOrder(r.Context(), actor, service.PlaceOrderInput{
		MenuID:          req.MenuID,
		ServiceDate:     serviceDate,
		DeliveryTime:    req.DeliveryTime,
		Headcount:       req.Headcount,
		DeliveryAddress: req.DeliveryAddress,
		DeliveryCity:    req.DeliveryCity,
		EquipmentLoaned: req.EquipmentLoaned,
	})
	if err != nil {
		h.writeError(w, err, "place order error", zap.Int64("userID", actor.UserID))
		return
	}

	writeJSON(w, http.StatusCreated, newOrderResponse(*o))
}

// GetOrders возвращает список заказов текущего клиента.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	orders, err := h.service.ListOrdersForCustomer(r.Context(), actor)
	if err != nil {
		h.writeError(w, err, "get orders error", zap.Int64("userID", actor.UserID))
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, newOrderList(orders))
}

// GetOrder возвращает заказ вместе с журналом статусов.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	number, ok := orderNumber(w, r)
	if !ok {
		return
	}

	d, err := h.service.GetOrder(r.Context(), actor, number)
	if err != nil {
		h.writeError(w, err, "get order error", zap.String("order", number))
		return
	}

	resp := orderDetailsResponse{
		orderResponse: newOrderResponse(d.Order),
		History:       make([]historyResponse, 0, len(d.History)),
	}
	for _, e := range d.History {
		resp.History = append(resp.History, historyResponse{
			Status:    e.Status,
			ChangedAt: e.ChangedAt.Format(time.RFC3339),
			ChangedBy: e.ChangedBy,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetOrdersByStatus возвращает сотруднику заказы в указанном статусе.
func (h *Handler) GetOrdersByStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	status, err := model.ParseOrderStatus(r.URL.Query().Get("status"))
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	orders, err := h.service.ListOrdersByStatus(r.Context(), actor, status)
	if err != nil {
		h.writeError(w, err, "get orders by status error", zap.Stringer("status", status))
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, newOrderList(orders))
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

// AdvanceStatus переводит заказ в следующий статус.
func (h *Handler) AdvanceStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	number, ok := orderNumber(w, r)
	if !ok {
		return
	}

	var req statusRequest
	if err := h.decode(r, &req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	status, err := model.ParseOrderStatus(req.Status)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	o, err := h.service.AdvanceOrderStatus(r.Context(), actor, number, status)
	if err != nil {
		h.writeError(w, err, "advance order status error", zap.String("order", number))
		return
	}

	writeJSON(w, http.StatusOK, newOrderResponse(*o))
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type refundResponse struct {
	Number           string `json:"number"`
	RefundPercentage int    `json:"refund_percentage"`
	RefundedAmount   string `json:"refunded_amount"`
}

type cancelFunc func(ctx context.Context, actor model.Actor, number, reason string) (lifecycle.Refund, error)

// CancelOrder отменяет заказ клиентом с возвратом по шкале.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	h.cancel(w, r, h.service.CustomerCancelOrder)
}

// AdminCancelOrder отменяет заказ администратором с полным возвратом.
func (h *Handler) AdminCancelOrder(w http.ResponseWriter, r *http.Request) {
	h.cancel(w, r, h.service.AdminCancelOrder)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request, cancelFn cancelFunc) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	number, ok := orderNumber(w, r)
	if !ok {
		return
	}

	// Тело необязательно: пустой запрос означает отмену без причины.
	var req cancelRequest
	if err := h.decode(r, &req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	refund, err := cancelFn(r.Context(), actor, number, req.Reason)
	if err != nil {
		h.writeError(w, err, "cancel order error", zap.String("order", number))
		return
	}

	writeJSON(w, http.StatusOK, refundResponse{
		Number:           number,
		RefundPercentage: refund.Percentage,
		RefundedAmount:   refund.Amount.StringFixed(2),
	})
}

// MarkEquipmentReturned отмечает возврат оборудования по заказу.
func (h *Handler) MarkEquipmentReturned(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	number, ok := orderNumber(w, r)
	if !ok {
		return
	}

	o, err := h.service.MarkEquipmentReturned(r.Context(), actor, number)
	if err != nil {
		h.writeError(w, err, "mark equipment returned error", zap.String("order", number))
		return
	}

	writeJSON(w, http.StatusOK, newOrderResponse(*o))
}

type reviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

// CreateReview сохраняет отзыв клиента о завершённом заказе.
func (h *Handler) CreateReview(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	number, ok := orderNumber(w, r)
	if !ok {
		return
	}

	var req reviewRequest
	if err := h.decode(r, &req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	rv, err := h.service.CreateReview(r.Context(), actor, number, req.Rating, req.Comment)
	if err != nil {
		h.writeError(w, err, "create review error", zap.String("order", number))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":     rv.ID,
		"rating": rv.Rating,
	})
}
