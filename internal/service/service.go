// Package service реализует бизнес-логику сервиса заказов кейтеринга.
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
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/catering-system/internal/activity"
	"github.com/mmeshcher/catering-system/internal/lifecycle"
	"github.com/mmeshcher/catering-system/internal/model"
	"github.com/mmeshcher/catering-system/internal/notify"
	"github.com/mmeshcher/catering-system/internal/repository"
)

var (
	// ErrInvalidCredentials возвращается при неверной паре email/пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidRole возвращается для неизвестной роли.
	ErrInvalidRole = errors.New("invalid role")
	// ErrReviewNotAllowed возвращается, если заказ ещё не завершён.
	ErrReviewNotAllowed = errors.New("review allowed only for completed orders")
	// ErrHeadcountTooLow возвращается, если гостей меньше минимума меню.
	ErrHeadcountTooLow = errors.New("headcount below menu minimum")
	// ErrServiceDatePast возвращается, если дата мероприятия уже прошла.
	ErrServiceDatePast = errors.New("service date is in the past")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, email string, passwordHash []byte, role model.Role) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	SetUserRole(ctx context.Context, id int64, role model.Role) error
	CreateMenu(ctx context.Context, m model.Menu) (*model.Menu, error)
	GetMenu(ctx context.Context, id int64) (*model.Menu, error)
	ListMenus(ctx context.Context) ([]model.Menu, error)
	CreateOrder(ctx context.Context, o model.Order, entry model.StatusHistoryEntry) error
	GetOrderByNumber(ctx context.Context, number string) (*model.Order, error)
	GetOrdersByCustomer(ctx context.Context, customerID int64) ([]model.Order, error)
	GetOrdersByStatus(ctx context.Context, status model.OrderStatus) ([]model.Order, error)
	GetStatusHistory(ctx context.Context, orderID uuid.UUID) ([]model.StatusHistoryEntry, error)
	UpdateOrder(ctx context.Context, number string, mutate repository.OrderMutation) (model.Order, error)
	GetPenaltyCandidates(ctx context.Context, limit int) ([]model.Order, error)
	CreateReview(ctx context.Context, rv model.Review) (*model.Review, error)
}

// Options содержит параметры бизнес-правил.
type Options struct {
	Location      *time.Location
	Policy        notify.Policy
	PenaltyAmount decimal.Decimal
	PenaltyWindow int
	SweepInterval time.Duration
	SweepBatch    int
	HomeCity      string
	DeliveryFee   decimal.Decimal
	AdminEmail    string
}

// DefaultOptions возвращает параметры по умолчанию.
func DefaultOptions() Options {
	return Options{
		Location:      time.UTC,
		Policy:        notify.DefaultPolicy(),
		PenaltyAmount: decimal.NewFromInt(600),
		PenaltyWindow: lifecycle.DefaultPenaltyWindow,
		SweepInterval: 24 * time.Hour,
		SweepBatch:    500,
		DeliveryFee:   decimal.RequireFromString("5.00"),
	}
}

// Service содержит бизнес-логику сервиса заказов.
type Service struct {
	repo       Repository
	dispatcher notify.Dispatcher
	recorder   activity.Recorder
	logger     *zap.Logger
	opts       Options
	now        func() time.Time
}

// NewService создаёт сервис. Нулевые зависимости заменяются заглушками.
func NewService(repo Repository, dispatcher notify.Dispatcher, recorder activity.Recorder, logger *zap.Logger, opts Options) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dispatcher == nil {
		dispatcher = notify.NewLogDispatcher(logger)
	}
	if recorder == nil {
		recorder = activity.NoopRecorder{}
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.PenaltyWindow <= 0 {
		opts.PenaltyWindow = lifecycle.DefaultPenaltyWindow
	}
	if opts.SweepBatch <= 0 {
		opts.SweepBatch = 500
	}

	return &Service{
		repo:       repo,
		dispatcher: dispatcher,
		recorder:   recorder,
		logger:     logger,
		opts:       opts,
		now:        time.Now,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterUser регистрирует нового клиента. Адрес из ADMIN_EMAIL получает роль администратора.
func (s *Service) RegisterUser(ctx context.Context, email, password string) (*model.User, error) {
	email = normalizeEmail(email)

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	role := model.RoleClient
	if s.opts.AdminEmail != "" && email == normalizeEmail(s.opts.AdminEmail) {
		role = model.RoleAdmin
	}

	id, err := s.repo.CreateUser(ctx, email, hashed, role)
	if err != nil {
		return nil, err
	}

	return &model.User{ID: id, Email: email, Role: role}, nil
}

// AuthenticateUser проверяет email и пароль и возвращает пользователя.
func (s *Service) AuthenticateUser(ctx context.Context, email, password string) (*model.User, error) {
	u, err := s.repo.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return u, nil
}

// SetUserRole меняет роль пользователя; доступно только администратору.
func (s *Service) SetUserRole(ctx context.Context, actor model.Actor, userID int64, role model.Role) error {
	if actor.Role != model.RoleAdmin {
		return lifecycle.ErrForbidden
	}
	if !role.Valid() {
		return ErrInvalidRole
	}
	return s.repo.SetUserRole(ctx, userID, role)
}

// UserRole возвращает текущую роль пользователя.
func (s *Service) UserRole(ctx context.Context, userID int64) (model.Role, error) {
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return u.Role, nil
}

// CreateMenu добавляет меню в каталог; доступно только администратору.
func (s *Service) CreateMenu(ctx context.Context, actor model.Actor, m model.Menu) (*model.Menu, error) {
	if actor.Role != model.RoleAdmin {
		return nil, lifecycle.ErrForbidden
	}
	return s.repo.CreateMenu(ctx, m)
}

// ListMenus возвращает каталог меню.
func (s *Service) ListMenus(ctx context.Context) ([]model.Menu, error) {
	return s.repo.ListMenus(ctx)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// notify отправляет уведомление получателю. Ошибка отправки только пишется в лог.
func (s *Service) notify(ctx context.Context, e notify.Event) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = s.now().UTC()
	}

	if e.RecipientEmail == "" {
		u, err := s.repo.GetUserByID(ctx, e.RecipientID)
		if err != nil {
			s.logger.Warn("notification recipient lookup failed",
				zap.Error(err), zap.Int64("recipient", e.RecipientID), zap.String("order", e.OrderNumber))
		} else {
			e.RecipientEmail = u.Email
		}
	}

	if err := s.dispatcher.Send(ctx, e); err != nil {
		s.logger.Error("send notification error",
			zap.Error(err), zap.String("type", string(e.Type)), zap.String("order", e.OrderNumber))
	}
}

// record пишет событие в журнал действий. Ошибка записи только пишется в лог.
func (s *Service) record(ctx context.Context, actor model.Actor, eventType string, details map[string]any) {
	entry := activity.Entry{
		EventType:  eventType,
		ActorEmail: activity.SystemActor,
		ActorRole:  activity.SystemRole,
		Context:    details,
		OccurredAt: s.now().UTC(),
	}
	if actor.Role != "" {
		entry.ActorRole = actor.Role
	}

	if actor.UserID != 0 {
		if u, err := s.repo.GetUserByID(ctx, actor.UserID); err == nil {
			entry.ActorEmail = u.Email
		}
	}

	if err := s.recorder.Record(ctx, entry); err != nil {
		s.logger.Error("record activity error", zap.Error(err), zap.String("event", eventType))
	}
}
