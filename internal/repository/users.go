package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/catering-system/internal/model"
)

// CreateUser создаёт нового пользователя.
func (r *PostgresRepository) CreateUser(ctx context.Context, email string, passwordHash []byte, role model.Role) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (email, password_hash, role) VALUES ($1, $2, $3) RETURNING id`,
		email, passwordHash, string(role),
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s", ErrUserExists, email)
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

// GetUserByEmail возвращает пользователя по email.
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getUser(ctx, `SELECT id, email, password_hash, role, created_at FROM users WHERE email = $1`, email)
}

// GetUserByID возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return r.getUser(ctx, `SELECT id, email, password_hash, role, created_at FROM users WHERE id = $1`, id)
}

func (r *PostgresRepository) getUser(ctx context.Context, query string, arg any) (*model.User, error) {
	var (
		u    model.User
		role string
	)
	err := r.pool.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Email, &u.PasswordHash, &role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.Role = model.Role(role)
	return &u, nil
}

// SetUserRole меняет роль пользователя.
func (r *PostgresRepository) SetUserRole(ctx context.Context, id int64, role model.Role) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET role = $2 WHERE id = $1`, id, string(role))
	if err != nil {
		return fmt.Errorf("update user role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// CreateMenu добавляет меню в каталог.
func (r *PostgresRepository) CreateMenu(ctx context.Context, m model.Menu) (*model.Menu, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO menus (title, price_per_person_cents, min_persons) VALUES ($1, $2, $3) RETURNING id, created_at`,
		m.Title, toCents(m.PricePerPerson), m.MinPersons,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create menu: %w", err)
	}
	return &m, nil
}

// GetMenu возвращает меню по идентификатору.
func (r *PostgresRepository) GetMenu(ctx context.Context, id int64) (*model.Menu, error) {
	var (
		m     model.Menu
		cents int64
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, price_per_person_cents, min_persons, created_at FROM menus WHERE id = $1`,
		id,
	).Scan(&m.ID, &m.Title, &cents, &m.MinPersons, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMenuNotFound
		}
		return nil, fmt.Errorf("get menu: %w", err)
	}
	m.PricePerPerson = fromCents(cents)
	return &m, nil
}

// ListMenus возвращает все меню каталога.
func (r *PostgresRepository) ListMenus(ctx context.Context) ([]model.Menu, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, price_per_person_cents, min_persons, created_at FROM menus ORDER BY title`,
	)
	if err != nil {
		return nil, fmt.Errorf("select menus: %w", err)
	}
	defer rows.Close()

	var res []model.Menu
	for rows.Next() {
		var (
			m     model.Menu
			cents int64
		)
		if err := rows.Scan(&m.ID, &m.Title, &cents, &m.MinPersons, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan menu: %w", err)
		}
		m.PricePerPerson = fromCents(cents)
		res = append(res, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
