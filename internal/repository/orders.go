package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/catering-system/internal/model"
)

// OrderMutation получает заблокированный снимок заказа и возвращает новый снимок
// и, при смене статуса, запись журнала. Ошибка отменяет транзакцию.
type OrderMutation func(o model.Order) (model.Order, *model.StatusHistoryEntry, error)

const orderColumns = `id, number, customer_id, menu_id, created_at, service_date, delivery_time,
	menu_price_cents, delivery_price_cents, headcount, delivery_address, delivery_city,
	status, equipment_loaned, equipment_returned, delivered_at, awaiting_return_at,
	penalty_notice_sent, cancellation_reason, refunded_cents`

func scanOrder(row pgx.Row) (model.Order, error) {
	var (
		o             model.Order
		menuCents     int64
		deliveryCents int64
		status        string
		refunded      *int64
	)

	err := row.Scan(
		&o.ID, &o.Number, &o.CustomerID, &o.MenuID, &o.CreatedAt, &o.ServiceDate, &o.DeliveryTime,
		&menuCents, &deliveryCents, &o.Headcount, &o.DeliveryAddress, &o.DeliveryCity,
		&status, &o.EquipmentLoaned, &o.EquipmentReturned, &o.DeliveredAt, &o.AwaitingReturnAt,
		&o.PenaltyNoticeSent, &o.CancellationReason, &refunded,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Order{}, ErrOrderNotFound
		}
		return model.Order{}, fmt.Errorf("scan order: %w", err)
	}

	o.Status, err = model.ParseOrderStatus(status)
	if err != nil {
		return model.Order{}, fmt.Errorf("scan order %s: %w", o.Number, err)
	}

	o.MenuPrice = fromCents(menuCents)
	o.DeliveryPrice = fromCents(deliveryCents)
	if refunded != nil {
		v := fromCents(*refunded)
		o.RefundedAmount = &v
	}

	return o, nil
}

func collectOrders(rows pgx.Rows) ([]model.Order, error) {
	defer rows.Close()

	var res []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

func insertHistory(ctx context.Context, tx pgx.Tx, e model.StatusHistoryEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO order_status_history (id, order_id, status, changed_at, changed_by) VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.OrderID, e.Status.String(), e.ChangedAt, e.ChangedBy,
	)
	if err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}
	return nil
}

// CreateOrder сохраняет новый заказ вместе с первой записью журнала статусов.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o model.Order, entry model.StatusHistoryEntry) error {
	return r.withRetry(ctx, func(ctx context.Context) error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		_, err = tx.Exec(ctx,
			`INSERT INTO orders (id, number, customer_id, menu_id, created_at, service_date, delivery_time,
				menu_price_cents, delivery_price_cents, headcount, delivery_address, delivery_city,
				status, equipment_loaned)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			o.ID, o.Number, o.CustomerID, o.MenuID, o.CreatedAt, o.ServiceDate, o.DeliveryTime,
			toCents(o.MenuPrice), toCents(o.DeliveryPrice), o.Headcount, o.DeliveryAddress, o.DeliveryCity,
			o.Status.String(), o.EquipmentLoaned,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s", ErrOrderNumberTaken, o.Number)
			}
			return fmt.Errorf("insert order: %w", err)
		}

		if err := insertHistory(ctx, tx, entry); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// GetOrderByNumber возвращает заказ по его номеру.
func (r *PostgresRepository) GetOrderByNumber(ctx context.Context, number string) (*model.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE number = $1`,
		number,
	))
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// GetOrdersByCustomer возвращает заказы клиента, новые первыми.
func (r *PostgresRepository) GetOrdersByCustomer(ctx context.Context, customerID int64) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE customer_id = $1 ORDER BY created_at DESC`,
		customerID,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	return collectOrders(rows)
}

// GetOrdersByStatus возвращает заказы в указанном статусе по дате мероприятия.
func (r *PostgresRepository) GetOrdersByStatus(ctx context.Context, status model.OrderStatus) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE status = $1 ORDER BY service_date, created_at`,
		status.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("select orders by status: %w", err)
	}
	return collectOrders(rows)
}

// GetStatusHistory возвращает журнал статусов заказа по возрастанию времени.
func (r *PostgresRepository) GetStatusHistory(ctx context.Context, orderID uuid.UUID) ([]model.StatusHistoryEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, order_id, status, changed_at, changed_by
		 FROM order_status_history
		 WHERE order_id = $1
		 ORDER BY changed_at, id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("select status history: %w", err)
	}
	defer rows.Close()

	var res []model.StatusHistoryEntry
	for rows.Next() {
		var (
			e      model.StatusHistoryEntry
			status string
		)
		if err := rows.Scan(&e.ID, &e.OrderID, &status, &e.ChangedAt, &e.ChangedBy); err != nil {
			return nil, fmt.Errorf("scan status history: %w", err)
		}
		if e.Status, err = model.ParseOrderStatus(status); err != nil {
			return nil, fmt.Errorf("scan status history: %w", err)
		}
		res = append(res, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// UpdateOrder выполняет чтение-изменение-запись заказа в одной транзакции.
// Строка заказа блокируется SELECT ... FOR UPDATE, поэтому конкурентная транзакция
// увидит уже применённое изменение и повторно проверит инварианты.
func (r *PostgresRepository) UpdateOrder(ctx context.Context, number string, mutate OrderMutation) (model.Order, error) {
	var updated model.Order

	err := r.withRetry(ctx, func(ctx context.Context) error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		current, err := scanOrder(tx.QueryRow(ctx,
			`SELECT `+orderColumns+` FROM orders WHERE number = $1 FOR UPDATE`,
			number,
		))
		if err != nil {
			return err
		}

		next, entry, err := mutate(current)
		if err != nil {
			return err
		}

		var refunded *int64
		if next.RefundedAmount != nil {
			v := toCents(*next.RefundedAmount)
			refunded = &v
		}

		_, err = tx.Exec(ctx,
			`UPDATE orders SET
				status = $2,
				equipment_returned = $3,
				delivered_at = $4,
				awaiting_return_at = $5,
				penalty_notice_sent = $6,
				cancellation_reason = $7,
				refunded_cents = $8,
				updated_at = $9
			 WHERE id = $1`,
			current.ID, next.Status.String(), next.EquipmentReturned, next.DeliveredAt, next.AwaitingReturnAt,
			next.PenaltyNoticeSent, next.CancellationReason, refunded, time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("update order: %w", err)
		}

		if entry != nil {
			if err := insertHistory(ctx, tx, *entry); err != nil {
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		updated = next
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}

	return updated, nil
}

// GetPenaltyCandidates возвращает доставленные заказы с невозвращённым оборудованием,
// по которым уведомление о штрафе ещё не отправлялось.
func (r *PostgresRepository) GetPenaltyCandidates(ctx context.Context, limit int) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE equipment_loaned AND NOT equipment_returned AND NOT penalty_notice_sent
		   AND status IN ($1, $2, $3)
		 ORDER BY delivered_at NULLS LAST
		 LIMIT $4`,
		model.StatusDelivered.String(),
		model.StatusAwaitingReturn.String(),
		model.StatusCompleted.String(),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select penalty candidates: %w", err)
	}
	return collectOrders(rows)
}

// CreateReview сохраняет отзыв клиента.
func (r *PostgresRepository) CreateReview(ctx context.Context, rv model.Review) (*model.Review, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO reviews (order_id, customer_id, rating, comment) VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		rv.OrderID, rv.CustomerID, rv.Rating, rv.Comment,
	).Scan(&rv.ID, &rv.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrReviewExists
		}
		return nil, fmt.Errorf("create review: %w", err)
	}
	return &rv, nil
}
