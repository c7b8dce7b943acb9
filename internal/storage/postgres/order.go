package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/milsabores/ventas/internal/domain/order"
)

const orderColumns = `id, buy_order, status,
	amount, discount_amount, final_amount,
	authorization_code, card_suffix, error_message,
	payment_method,
	customer_name, customer_email, customer_phone,
	customer_address, customer_comuna, customer_city,
	items, created_at, updated_at, transaction_date`

const createOrderSQL = `INSERT INTO orders (buy_order, status,
		amount, discount_amount, final_amount,
		authorization_code, card_suffix, error_message,
		payment_method,
		customer_name, customer_email, customer_phone,
		customer_address, customer_comuna, customer_city,
		items, created_at, updated_at, transaction_date)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		$11, $12, $13, $14, $15, $16, $17, $18, $19)
	RETURNING id`

const updateOrderSQL = `UPDATE orders SET status = $2,
		authorization_code = $3, card_suffix = $4, error_message = $5,
		updated_at = $6, transaction_date = $7
	WHERE buy_order = $1`

const getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

const getOrderByBuyOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE buy_order = $1`

const lockOrderByBuyOrderSQL = `SELECT ` + orderColumns + ` FROM orders
	WHERE buy_order = $1 FOR UPDATE`

const orderExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE buy_order = $1)`

const deleteOrderSQL = `DELETE FROM orders WHERE id = $1`

const listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
	ORDER BY created_at DESC LIMIT $1 OFFSET $2`

const countOrdersSQL = `SELECT COUNT(*) FROM orders`

const countOrdersByStatusSQL = `SELECT COUNT(*) FROM orders WHERE status = $1`

const findOrdersByStatusSQL = `SELECT ` + orderColumns + ` FROM orders
	WHERE status = $1 ORDER BY created_at DESC`

const findOrdersByEmailSQL = `SELECT ` + orderColumns + ` FROM orders
	WHERE customer_email = $1 ORDER BY created_at DESC`

const findOrdersBetweenSQL = `SELECT ` + orderColumns + ` FROM orders
	WHERE created_at BETWEEN $1 AND $2 ORDER BY created_at DESC`

const findRecentOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
	ORDER BY created_at DESC LIMIT $1`

// pgUniqueViolation is the PostgreSQL error code for unique constraint hits.
const pgUniqueViolation = "23505"

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Line
// items live in a JSONB column on the orders row, so an order and its items
// always move in one statement.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order and assigns its ID. A unique violation on
// buy_order is reported as *order.DuplicateError so races past the service
// pre-check still surface as duplicates.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}

	err = r.pool.QueryRow(ctx, createOrderSQL,
		o.BuyOrder, o.Status,
		o.Amount, o.DiscountAmount, o.FinalAmount,
		o.AuthorizationCode, o.CardSuffix, o.ErrorMessage,
		o.PaymentMethod,
		o.Customer.Name, o.Customer.Email, o.Customer.Phone,
		o.Customer.Address, o.Customer.Comuna, o.Customer.City,
		itemsJSON, o.CreatedAt, o.UpdatedAt, o.TransactionDate,
	).Scan(&o.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return &order.DuplicateError{BuyOrder: o.BuyOrder}
		}
		return fmt.Errorf("creating order %q: %w", o.BuyOrder, err)
	}

	return nil
}

// Get returns the order with the given ID.
func (r *OrderRepository) Get(ctx context.Context, id int64) (*order.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, getOrderSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}
	return o, nil
}

// GetByBuyOrder returns the order with the given business key.
func (r *OrderRepository) GetByBuyOrder(ctx context.Context, buyOrder string) (*order.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, getOrderByBuyOrderSQL, buyOrder))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", buyOrder, err)
	}
	return o, nil
}

// ExistsByBuyOrder reports whether an order with the business key exists.
func (r *OrderRepository) ExistsByBuyOrder(ctx context.Context, buyOrder string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, orderExistsSQL, buyOrder).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking order %q: %w", buyOrder, err)
	}
	return exists, nil
}

// UpdateByBuyOrder loads the order under a row lock, applies fn, and writes
// the mutable fields back in the same transaction. An fn error rolls the
// transaction back and is returned unchanged, so domain errors pass through
// unwrapped.
func (r *OrderRepository) UpdateByBuyOrder(ctx context.Context, buyOrder string, fn func(*order.Order) error) (*order.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	o, err := scanOrder(tx.QueryRow(ctx, lockOrderByBuyOrderSQL, buyOrder))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("locking order %q: %w", buyOrder, err)
	}

	if err := fn(o); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, updateOrderSQL,
		o.BuyOrder, o.Status,
		o.AuthorizationCode, o.CardSuffix, o.ErrorMessage,
		o.UpdatedAt, o.TransactionDate,
	)
	if err != nil {
		return nil, fmt.Errorf("updating order %q: %w", buyOrder, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing order update %q: %w", buyOrder, err)
	}

	return o, nil
}

// Delete removes the order row; the JSONB items go with it.
func (r *OrderRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, deleteOrderSQL, id)
	if err != nil {
		return fmt.Errorf("deleting order %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// List returns a page of orders, newest first.
func (r *OrderRepository) List(ctx context.Context, p order.ListParams) ([]order.Order, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 50
	}
	return r.queryOrders(ctx, listOrdersSQL, limit, p.Offset)
}

// Count returns the total number of orders.
func (r *OrderRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, countOrdersSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting orders: %w", err)
	}
	return n, nil
}

// CountByStatus returns the number of orders in the given status.
func (r *OrderRepository) CountByStatus(ctx context.Context, s order.Status) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, countOrdersByStatusSQL, s).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting orders by status %s: %w", s, err)
	}
	return n, nil
}

// FindByStatus returns all orders in the given status, newest first.
func (r *OrderRepository) FindByStatus(ctx context.Context, s order.Status) ([]order.Order, error) {
	return r.queryOrders(ctx, findOrdersByStatusSQL, s)
}

// FindByCustomerEmail returns all orders placed with the given email.
func (r *OrderRepository) FindByCustomerEmail(ctx context.Context, email string) ([]order.Order, error) {
	return r.queryOrders(ctx, findOrdersByEmailSQL, email)
}

// FindCreatedBetween returns orders created in the [start, end] range.
func (r *OrderRepository) FindCreatedBetween(ctx context.Context, start, end time.Time) ([]order.Order, error) {
	return r.queryOrders(ctx, findOrdersBetweenSQL, start, end)
}

// FindRecent returns the n most recently created orders.
func (r *OrderRepository) FindRecent(ctx context.Context, n int) ([]order.Order, error) {
	return r.queryOrders(ctx, findRecentOrdersSQL, n)
}

func (r *OrderRepository) queryOrders(ctx context.Context, sql string, args ...any) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("querying orders: %w", err)
	}
	defer rows.Close()

	var out []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning order: %w", err)
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading orders: %w", err)
	}
	return out, nil
}

func scanOrder(row pgx.Row) (*order.Order, error) {
	var (
		o         order.Order
		itemsJSON []byte
	)
	err := row.Scan(
		&o.ID, &o.BuyOrder, &o.Status,
		&o.Amount, &o.DiscountAmount, &o.FinalAmount,
		&o.AuthorizationCode, &o.CardSuffix, &o.ErrorMessage,
		&o.PaymentMethod,
		&o.Customer.Name, &o.Customer.Email, &o.Customer.Phone,
		&o.Customer.Address, &o.Customer.Comuna, &o.Customer.City,
		&itemsJSON, &o.CreatedAt, &o.UpdatedAt, &o.TransactionDate,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return nil, fmt.Errorf("unmarshaling order items: %w", err)
	}
	return &o, nil
}
