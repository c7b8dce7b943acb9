package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ListParams controls pagination for List.
type ListParams struct {
	Limit  int
	Offset int
}

// Stats aggregates order counts and revenue over the whole store.
// Revenue sums FinalAmount over APPROVED orders only.
type Stats struct {
	TotalOrders        int64
	PendingOrders      int64
	ApprovedOrders     int64
	RejectedOrders     int64
	CancelledOrders    int64
	TotalRevenue       decimal.Decimal
	AverageOrderAmount decimal.Decimal
}

// Repository defines persistence operations for orders.
//
// UpdateByBuyOrder is the per-aggregate atomic read-modify-write: the
// implementation must serialize concurrent updates for the same buy order so
// fn always sees the latest committed state. Every status transition goes
// through it.
type Repository interface {
	// Create persists a new order and assigns its surrogate ID.
	// Returns *DuplicateError when the buy order is already taken.
	Create(ctx context.Context, o *Order) error
	// Get returns the order with the given ID or ErrNotFound.
	Get(ctx context.Context, id int64) (*Order, error)
	// GetByBuyOrder returns the order with the given business key or ErrNotFound.
	GetByBuyOrder(ctx context.Context, buyOrder string) (*Order, error)
	// ExistsByBuyOrder reports whether an order with the business key exists.
	ExistsByBuyOrder(ctx context.Context, buyOrder string) (bool, error)
	// UpdateByBuyOrder loads the order under a per-row lock, applies fn, and
	// writes the result in the same transaction. When fn returns an error the
	// transaction is rolled back and that error is returned unchanged.
	UpdateByBuyOrder(ctx context.Context, buyOrder string, fn func(*Order) error) (*Order, error)
	// Delete removes the order and its items.
	Delete(ctx context.Context, id int64) error

	List(ctx context.Context, p ListParams) ([]Order, error)
	Count(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context, s Status) (int64, error)
	FindByStatus(ctx context.Context, s Status) ([]Order, error)
	FindByCustomerEmail(ctx context.Context, email string) ([]Order, error)
	FindCreatedBetween(ctx context.Context, start, end time.Time) ([]Order, error)
	FindRecent(ctx context.Context, n int) ([]Order, error)
}
