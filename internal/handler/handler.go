// Package handler содержит HTTP-обработчики API сервиса заказов кейтеринга.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/catering-system/internal/lifecycle"
	"github.com/mmeshcher/catering-system/internal/middleware"
	"github.com/mmeshcher/catering-system/internal/model"
	"github.com/mmeshcher/catering-system/internal/repository"
	"github.com/mmeshcher/catering-system/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, email, password string) (*model.User, error)
	AuthenticateUser(ctx context.Context, email, password string) (*model.User, error)
	SetUserRole(ctx context.Context, actor model.Actor, userID int64, role model.Role) error
	CreateMenu(ctx context.Context, actor model.Actor, m model.Menu) (*model.Menu, error)
	ListMenus(ctx context.Context) ([]model.Menu, error)
	PlaceOrder(ctx context.Context, actor model.Actor, in service.PlaceOrderInput) (*model.Order, error)
	GetOrder(ctx context.Context, actor model.Actor, number string) (*service.OrderDetails, error)
	ListOrdersForCustomer(ctx context.Context, actor model.Actor) ([]model.Order, error)
	ListOrdersByStatus(ctx context.Context, actor model.Actor, status model.OrderStatus) ([]model.Order, error)
	AdvanceOrderStatus(ctx context.Context, actor model.Actor, number string, status model.OrderStatus) (*model.Order, error)
	CustomerCancelOrder(ctx context.Context, actor model.Actor, number, reason string) (lifecycle.Refund, error)
	AdminCancelOrder(ctx context.Context, actor model.Actor, number, reason string) (lifecycle.Refund, error)
	MarkEquipmentReturned(ctx context.Context, actor model.Actor, number string) (*model.Order, error)
	CreateReview(ctx context.Context, actor model.Actor, number string, rating int, comment string) (*model.Review, error)
	RunEquipmentReturnSweep(ctx context.Context) (service.SweepReport, error)
}

// Handler реализует HTTP-обработчики API сервиса заказов.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	validate       *validator.Validate
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
	}
}

// decode читает JSON-тело запроса и проверяет его по тегам validate.
func (h *Handler) decode(r *http.Request, dst any) error {
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return h.validate.Struct(dst)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError переводит ошибку бизнес-логики в HTTP-статус. Неизвестные ошибки пишутся в лог как 500.
func (h *Handler) writeError(w http.ResponseWriter, err error, msg string, fields ...zap.Field) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(msg, append(fields, zap.Error(err))...)
	}
	http.Error(w, http.StatusText(status), status)
}

func statusFor(err error) int {
	var validationErrs validator.ValidationErrors

	switch {
	case errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrMenuNotFound),
		errors.Is(err, repository.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, lifecycle.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, lifecycle.ErrIllegalRegression),
		errors.Is(err, lifecycle.ErrAlreadyCancelled),
		errors.Is(err, lifecycle.ErrAlreadyCompleted),
		errors.Is(err, lifecycle.ErrNotLoaned),
		errors.Is(err, repository.ErrConcurrentUpdate),
		errors.Is(err, repository.ErrUserExists),
		errors.Is(err, repository.ErrReviewExists),
		errors.Is(err, service.ErrReviewNotAllowed):
		return http.StatusConflict
	case errors.Is(err, lifecycle.ErrInvalidStatus),
		errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, service.ErrHeadcountTooLow),
		errors.Is(err, service.ErrServiceDatePast),
		errors.As(err, &validationErrs):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func actorFrom(w http.ResponseWriter, r *http.Request) (model.Actor, bool) {
	actor, ok := middleware.GetActorFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	}
	return actor, ok
}

type credentialsRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type userResponse struct {
	ID    int64      `json:"id"`
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := h.decode(r, &req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	u, err := h.service.RegisterUser(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, err, "register user error")
		return
	}

	h.startSession(w, u)
}

// Login выполняет аутентификацию пользователя и устанавливает cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	u, err := h.service.AuthenticateUser(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, err, "login user error")
		return
	}

	h.startSession(w, u)
}

func (h *Handler) startSession(w http.ResponseWriter, u *model.User) {
	if err := h.authMiddleware.SetAuthCookie(w, model.Actor{UserID: u.ID, Role: u.Role}); err != nil {
		h.logger.Error("issue session error", zap.Error(err), zap.Int64("userID", u.ID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, userResponse{ID: u.ID, Email: u.Email, Role: u.Role})
}

type roleRequest struct {
	Role model.Role `json:"role" validate:"required,oneof=client employee admin"`
}

// SetUserRole меняет роль пользователя.
func (h *Handler) SetUserRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || userID <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req roleRequest
	if err := h.decode(r, &req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.SetUserRole(r.Context(), actor, userID, req.Role); err != nil {
		h.writeError(w, err, "set user role error", zap.Int64("userID", userID))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type menuRequest struct {
	Title          string          `json:"title" validate:"required,max=200"`
	PricePerPerson decimal.Decimal `json:"price_per_person"`
	MinPersons     int             `json:"min_persons" validate:"gte=1"`
}

// CreateMenu добавляет меню в каталог.
func (h *Handler) CreateMenu(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req menuRequest
	if err := h.decode(r, &req); err != nil || !req.PricePerPerson.IsPositive() {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	m, err := h.service.CreateMenu(r.Context(), actor, model.Menu{
		Title:          strings.TrimSpace(req.Title),
		PricePerPerson: req.PricePerPerson,
		MinPersons:     req.MinPersons,
	})
	if err != nil {
		h.writeError(w, err, "create menu error")
		return
	}

	writeJSON(w, http.StatusCreated, m)
}

// ListMenus возвращает каталог меню.
func (h *Handler) ListMenus(w http.ResponseWriter, r *http.Request) {
	menus, err := h.service.ListMenus(r.Context())
	if err != nil {
		h.writeError(w, err, "list menus error")
		return
	}

	if len(menus) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, menus)
}

// RunEquipmentSweep запускает проверку возврата оборудования вне расписания.
func (h *Handler) RunEquipmentSweep(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.RunEquipmentReturnSweep(r.Context())
	if err != nil {
		h.writeError(w, err, "equipment sweep error")
		return
	}

	writeJSON(w, http.StatusOK, report)
}
