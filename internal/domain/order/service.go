package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// ItemRequest holds the input for one line item of a new order.
type ItemRequest struct {
	ProductCode   string
	ProductName   string
	UnitPrice     decimal.Decimal
	Quantity      int
	SizeOption    string
	CustomMessage string
}

// CreateRequest holds the input for creating an order.
type CreateRequest struct {
	BuyOrder       string
	Amount         decimal.Decimal
	DiscountAmount decimal.Decimal
	PaymentMethod  Method
	Customer       Customer
	Items          []ItemRequest
}

// Service encapsulates the order workflow business logic.
type Service struct {
	orders Repository
	now    func() time.Time
}

// NewService creates an order Service backed by the given repository.
func NewService(orders Repository) *Service {
	return &Service{orders: orders, now: time.Now}
}

// Create validates the request, builds the aggregate with status PENDING,
// computed final amount and item subtotals, and persists it. The buy order
// is checked for uniqueness before any write; the storage unique constraint
// is the backstop for races.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	if !req.PaymentMethod.Valid() {
		return nil, errors.Errorf("invalid payment method %q", req.PaymentMethod)
	}

	final := req.Amount.Sub(req.DiscountAmount)
	if final.IsNegative() {
		return nil, ErrNegativeFinalAmount
	}

	items := make([]Item, len(req.Items))
	for i, ir := range req.Items {
		if ir.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductCode: ir.ProductCode}
		}
		if !ir.UnitPrice.IsPositive() {
			return nil, &InvalidPriceError{ProductCode: ir.ProductCode}
		}
		items[i] = Item{
			ProductCode:   ir.ProductCode,
			ProductName:   ir.ProductName,
			UnitPrice:     ir.UnitPrice,
			Quantity:      ir.Quantity,
			SizeOption:    ir.SizeOption,
			CustomMessage: ir.CustomMessage,
		}
		items[i].RecalcSubtotal()
	}

	exists, err := s.orders.ExistsByBuyOrder(ctx, req.BuyOrder)
	if err != nil {
		return nil, errors.Wrap(err, "check buy order")
	}
	if exists {
		return nil, &DuplicateError{BuyOrder: req.BuyOrder}
	}

	now := s.now()
	o := &Order{
		BuyOrder:       req.BuyOrder,
		Status:         StatusPending,
		Amount:         req.Amount,
		DiscountAmount: req.DiscountAmount,
		FinalAmount:    final,
		PaymentMethod:  req.PaymentMethod,
		Customer:       req.Customer,
		Items:          items,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	return o, nil
}

// Get returns the order with the given surrogate ID.
func (s *Service) Get(ctx context.Context, id int64) (*Order, error) {
	return s.orders.Get(ctx, id)
}

// GetByBuyOrder returns the order with the given business key.
func (s *Service) GetByBuyOrder(ctx context.Context, buyOrder string) (*Order, error) {
	return s.orders.GetByBuyOrder(ctx, buyOrder)
}

// List returns a page of orders, newest first.
func (s *Service) List(ctx context.Context, p ListParams) ([]Order, error) {
	return s.orders.List(ctx, p)
}

// FindByStatus returns all orders in the given status.
func (s *Service) FindByStatus(ctx context.Context, st Status) ([]Order, error) {
	if !st.Valid() {
		return nil, &InvalidStatusError{Value: string(st)}
	}
	return s.orders.FindByStatus(ctx, st)
}

// FindByCustomerEmail returns all orders placed with the given customer email.
func (s *Service) FindByCustomerEmail(ctx context.Context, email string) ([]Order, error) {
	return s.orders.FindByCustomerEmail(ctx, email)
}

// FindCreatedBetween returns orders created in the [start, end] range.
func (s *Service) FindCreatedBetween(ctx context.Context, start, end time.Time) ([]Order, error) {
	return s.orders.FindCreatedBetween(ctx, start, end)
}

// FindRecent returns the n most recently created orders.
func (s *Service) FindRecent(ctx context.Context, n int) ([]Order, error) {
	return s.orders.FindRecent(ctx, n)
}

// UpdateStatus applies the administrative status update to the order with the
// given ID. The write happens under the repository's per-aggregate lock so it
// serializes against concurrent payment confirmations.
func (s *Service) UpdateStatus(ctx context.Context, id int64, st Status, d StatusDetails) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.UpdateStatusByBuyOrder(ctx, o.BuyOrder, st, d)
}

// UpdateStatusByBuyOrder applies the administrative status update addressed
// by business key.
func (s *Service) UpdateStatusByBuyOrder(ctx context.Context, buyOrder string, st Status, d StatusDetails) (*Order, error) {
	return s.orders.UpdateByBuyOrder(ctx, buyOrder, func(o *Order) error {
		return o.ApplyStatus(st, d, s.now())
	})
}

// Cancel cancels the order with the given ID. Only PENDING orders can be
// cancelled; anything else fails with *InvalidOperationError and leaves the
// order unchanged.
func (s *Service) Cancel(ctx context.Context, id int64) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.orders.UpdateByBuyOrder(ctx, o.BuyOrder, func(o *Order) error {
		return o.Cancel(s.now())
	})
}

// Delete removes the order with the given ID. Only CANCELLED and REJECTED
// orders may be deleted; the order's items go with it.
func (s *Service) Delete(ctx context.Context, id int64) error {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return err
	}
	if !o.Status.Deletable() {
		return &InvalidOperationError{Op: "delete", Status: o.Status}
	}
	return s.orders.Delete(ctx, o.ID)
}

// Stats computes aggregate order statistics. The count queries and the
// revenue scan are independent reads, so they fan out concurrently.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	var (
		st       Stats
		approved []Order
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		st.TotalOrders, err = s.orders.Count(ctx)
		return err
	})
	for _, c := range []struct {
		status Status
		dst    *int64
	}{
		{StatusPending, &st.PendingOrders},
		{StatusApproved, &st.ApprovedOrders},
		{StatusRejected, &st.RejectedOrders},
		{StatusCancelled, &st.CancelledOrders},
	} {
		g.Go(func() (err error) {
			*c.dst, err = s.orders.CountByStatus(ctx, c.status)
			return err
		})
	}
	g.Go(func() (err error) {
		approved, err = s.orders.FindByStatus(ctx, StatusApproved)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "collect stats")
	}

	revenue := decimal.Zero
	for _, o := range approved {
		revenue = revenue.Add(o.FinalAmount)
	}
	st.TotalRevenue = revenue

	// Average over approved orders; divisor floored at 1 so an empty store
	// yields zero instead of a division error.
	divisor := st.ApprovedOrders
	if divisor < 1 {
		divisor = 1
	}
	st.AverageOrderAmount = revenue.Div(decimal.NewFromInt(divisor)).Round(2)

	return &st, nil
}
