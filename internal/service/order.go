package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront/internal/database"
	"storefront/internal/events"
	"storefront/internal/model"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrOrderExists   = errors.New("order already exists")
	ErrInvalidStatus = errors.New("invalid order status")
)

const orderColumns = `id, user_id, items, total_cents, currency, status, shipping_address,
	customer_email, customer_name, created_at, updated_at`

type OrderService struct {
	db    *sql.DB
	topic string
}

// NewOrderService returns the order store. Every created order also gets an
// outbox record addressed to topic.
func NewOrderService(db *sql.DB, topic string) *OrderService {
	return &OrderService{db: db, topic: topic}
}

func (s *OrderService) FindByID(ctx context.Context, id string) (*model.Order, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// Create inserts the order unless one with the same id is already stored,
// in which case it returns ErrOrderExists and writes nothing.
func (s *OrderService) Create(ctx context.Context, o *model.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}
	var address []byte
	if o.ShippingAddress != nil {
		if address, err = json.Marshal(o.ShippingAddress); err != nil {
			return fmt.Errorf("encode address: %w", err)
		}
	}

	now := time.Now().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING`,
		o.ID, o.UserID, items, o.TotalCents, o.Currency, string(o.Status), address,
		o.CustomerEmail, o.CustomerName, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrOrderExists
		}
		return fmt.Errorf("insert order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	if n == 0 {
		return ErrOrderExists
	}

	if err := decrementStock(ctx, tx, o.Items); err != nil {
		return err
	}

	ev, err := events.NewOrderPaid(o)
	if err != nil {
		return err
	}
	if err := insertOutbox(ctx, tx, s.topic, o.ID, ev); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// decrementStock takes sold quantities off the catalog, never below zero.
// Items whose product is no longer in the catalog are skipped.
func decrementStock(ctx context.Context, tx *sql.Tx, items []model.OrderItem) error {
	for _, it := range items {
		_, err := tx.ExecContext(ctx,
			`UPDATE products SET stock = GREATEST(stock - $1, 0), updated_at = NOW() WHERE id::text = $2`,
			it.Quantity, it.ProductID,
		)
		if err != nil {
			return fmt.Errorf("update stock for %s: %w", it.ProductID, err)
		}
	}
	return nil
}

func (s *OrderService) ListByUser(ctx context.Context, userID string) ([]model.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	return collectOrders(rows)
}

func (s *OrderService) ListRecent(ctx context.Context, limit int) ([]model.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent orders: %w", err)
	}
	return collectOrders(rows)
}

func (s *OrderService) UpdateStatus(ctx context.Context, id string, status model.OrderStatus) (*model.Order, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	row := s.db.QueryRowContext(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING `+orderColumns,
		string(status), id,
	)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("update order: %w", err)
	}
	return o, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*model.Order, error) {
	var (
		o       model.Order
		status  string
		items   []byte
		address []byte
	)
	err := row.Scan(&o.ID, &o.UserID, &items, &o.TotalCents, &o.Currency, &status, &address,
		&o.CustomerEmail, &o.CustomerName, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Status = model.OrderStatus(status)
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	if len(address) > 0 {
		o.ShippingAddress = &model.Address{}
		if err := json.Unmarshal(address, o.ShippingAddress); err != nil {
			return nil, fmt.Errorf("decode address: %w", err)
		}
	}
	return &o, nil
}

func collectOrders(rows *sql.Rows) ([]model.Order, error) {
	defer rows.Close()

	orders := []model.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return orders, nil
}
