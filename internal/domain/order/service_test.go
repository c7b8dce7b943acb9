package order

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopspring/decimal"
)

// memRepo is an in-memory Repository for service tests. All access is
// serialized through one mutex, which also gives UpdateByBuyOrder the
// per-aggregate atomicity the interface demands.
type memRepo struct {
	mu     sync.Mutex
	nextID int64
	orders []*Order
}

func newMemRepo(orders ...*Order) *memRepo {
	r := &memRepo{nextID: 1}
	for _, o := range orders {
		cp := *o
		if cp.ID == 0 {
			cp.ID = r.nextID
		}
		if cp.ID >= r.nextID {
			r.nextID = cp.ID + 1
		}
		r.orders = append(r.orders, &cp)
	}
	return r
}

func (r *memRepo) Create(_ context.Context, o *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.orders {
		if e.BuyOrder == o.BuyOrder {
			return &DuplicateError{BuyOrder: o.BuyOrder}
		}
	}
	o.ID = r.nextID
	r.nextID++
	cp := *o
	r.orders = append(r.orders, &cp)
	return nil
}

func (r *memRepo) Get(_ context.Context, id int64) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.ID == id {
			cp := *o
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memRepo) GetByBuyOrder(_ context.Context, buyOrder string) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.BuyOrder == buyOrder {
			cp := *o
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memRepo) ExistsByBuyOrder(_ context.Context, buyOrder string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.BuyOrder == buyOrder {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRepo) UpdateByBuyOrder(_ context.Context, buyOrder string, fn func(*Order) error) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, o := range r.orders {
		if o.BuyOrder == buyOrder {
			cp := *o
			if err := fn(&cp); err != nil {
				return nil, err
			}
			r.orders[i] = &cp
			out := cp
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, o := range r.orders {
		if o.ID == id {
			r.orders = append(r.orders[:i], r.orders[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (r *memRepo) List(_ context.Context, p ListParams) ([]Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Order, 0, len(r.orders))
	for _, o := range r.orders {
		out = append(out, *o)
	}
	if p.Offset >= len(out) {
		return nil, nil
	}
	out = out[p.Offset:]
	if p.Limit > 0 && p.Limit < len(out) {
		out = out[:p.Limit]
	}
	return out, nil
}

func (r *memRepo) Count(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.orders)), nil
}

func (r *memRepo) CountByStatus(_ context.Context, s Status) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, o := range r.orders {
		if o.Status == s {
			n++
		}
	}
	return n, nil
}

func (r *memRepo) FindByStatus(_ context.Context, s Status) ([]Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Order
	for _, o := range r.orders {
		if o.Status == s {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (r *memRepo) FindByCustomerEmail(_ context.Context, email string) ([]Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Order
	for _, o := range r.orders {
		if o.Customer.Email == email {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (r *memRepo) FindCreatedBetween(_ context.Context, start, end time.Time) ([]Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Order
	for _, o := range r.orders {
		if !o.CreatedAt.Before(start) && !o.CreatedAt.After(end) {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (r *memRepo) FindRecent(_ context.Context, n int) ([]Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Order, 0, n)
	for i := len(r.orders) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, *r.orders[i])
	}
	return out, nil
}

var _ Repository = (*memRepo)(nil)

func newTestService(repo Repository) *Service {
	svc := NewService(repo)
	svc.now = func() time.Time {
		return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	}
	return svc
}

func validCreateRequest() CreateRequest {
	return CreateRequest{
		BuyOrder:       "ORD-1",
		Amount:         decimal.RequireFromString("90000"),
		DiscountAmount: decimal.RequireFromString("5000"),
		PaymentMethod:  MethodWebpay,
		Customer: Customer{
			Name:    "Sofía Rojas",
			Email:   "sofia@example.com",
			Phone:   "+56911112222",
			Address: "Av. Siempre Viva 742",
			Comuna:  "Providencia",
			City:    "Santiago",
		},
		Items: []ItemRequest{
			{
				ProductCode: "TC001",
				ProductName: "Torta Cuadrada de Chocolate",
				UnitPrice:   decimal.RequireFromString("45000"),
				Quantity:    2,
			},
		},
	}
}

func TestService_Create(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)

	o, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	assert.NotZero(t, o.ID)
	assert.Equal(t, StatusPending, o.Status)
	assert.True(t, o.FinalAmount.Equal(decimal.RequireFromString("85000")))
	require.Len(t, o.Items, 1)
	assert.True(t, o.Items[0].Subtotal.Equal(decimal.RequireFromString("90000")))
	assert.Equal(t, o.CreatedAt, o.UpdatedAt)
	assert.Nil(t, o.TransactionDate)
}

func TestService_Create_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CreateRequest)
		wantErr error
	}{
		{
			name:    "no items",
			mutate:  func(r *CreateRequest) { r.Items = nil },
			wantErr: ErrEmptyItems,
		},
		{
			name: "discount above amount",
			mutate: func(r *CreateRequest) {
				r.DiscountAmount = decimal.RequireFromString("100000")
			},
			wantErr: ErrNegativeFinalAmount,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreateRequest()
			tt.mutate(&req)

			_, err := newTestService(newMemRepo()).Create(context.Background(), req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("invalid payment method", func(t *testing.T) {
		req := validCreateRequest()
		req.PaymentMethod = Method("CRYPTO")
		_, err := newTestService(newMemRepo()).Create(context.Background(), req)
		require.Error(t, err)
	})

	t.Run("zero quantity", func(t *testing.T) {
		req := validCreateRequest()
		req.Items[0].Quantity = 0
		_, err := newTestService(newMemRepo()).Create(context.Background(), req)

		var qErr *InvalidQuantityError
		require.ErrorAs(t, err, &qErr)
		assert.Equal(t, "TC001", qErr.ProductCode)
	})

	t.Run("non-positive price", func(t *testing.T) {
		req := validCreateRequest()
		req.Items[0].UnitPrice = decimal.Zero
		_, err := newTestService(newMemRepo()).Create(context.Background(), req)

		var pErr *InvalidPriceError
		require.ErrorAs(t, err, &pErr)
	})
}

func TestService_Create_DuplicateBuyOrder(t *testing.T) {
	svc := newTestService(newMemRepo())

	_, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), validCreateRequest())
	var dupErr *DuplicateError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, "ORD-1", dupErr.BuyOrder)
}

func TestService_FindByStatus_RejectsUnknownStatus(t *testing.T) {
	svc := newTestService(newMemRepo())
	_, err := svc.FindByStatus(context.Background(), Status("SHIPPED"))

	var stErr *InvalidStatusError
	require.ErrorAs(t, err, &stErr)
}

func TestService_UpdateStatus(t *testing.T) {
	repo := newMemRepo(&Order{ID: 1, BuyOrder: "ORD-1", Status: StatusApproved})
	svc := newTestService(repo)

	o, err := svc.UpdateStatus(context.Background(), 1, StatusProcessing, StatusDetails{})
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, o.Status)

	// Direct jump allowed on the administrative path.
	o, err = svc.UpdateStatusByBuyOrder(context.Background(), "ORD-1", StatusDelivered, StatusDetails{})
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, o.Status)
}

func TestService_UpdateStatus_NotFound(t *testing.T) {
	svc := newTestService(newMemRepo())
	_, err := svc.UpdateStatus(context.Background(), 42, StatusProcessing, StatusDetails{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_Cancel(t *testing.T) {
	repo := newMemRepo(
		&Order{ID: 1, BuyOrder: "ORD-1", Status: StatusPending},
		&Order{ID: 2, BuyOrder: "ORD-2", Status: StatusApproved},
	)
	svc := newTestService(repo)

	o, err := svc.Cancel(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, o.Status)

	_, err = svc.Cancel(context.Background(), 2)
	var opErr *InvalidOperationError
	require.ErrorAs(t, err, &opErr)

	// The failed cancel must not have leaked a partial write.
	got, err := svc.Get(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, got.Status)
}

func TestService_Delete(t *testing.T) {
	repo := newMemRepo(
		&Order{ID: 1, BuyOrder: "ORD-1", Status: StatusCancelled},
		&Order{ID: 2, BuyOrder: "ORD-2", Status: StatusRejected},
		&Order{ID: 3, BuyOrder: "ORD-3", Status: StatusApproved},
	)
	svc := newTestService(repo)

	require.NoError(t, svc.Delete(context.Background(), 1))
	require.NoError(t, svc.Delete(context.Background(), 2))

	err := svc.Delete(context.Background(), 3)
	var opErr *InvalidOperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "delete", opErr.Op)

	_, err = svc.Get(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_Stats(t *testing.T) {
	mk := func(id int64, status Status, final string) *Order {
		return &Order{
			ID:          id,
			BuyOrder:    "ORD-" + string(rune('0'+id)),
			Status:      status,
			FinalAmount: decimal.RequireFromString(final),
		}
	}
	repo := newMemRepo(
		mk(1, StatusApproved, "10000"),
		mk(2, StatusApproved, "20000"),
		mk(3, StatusApproved, "30000"),
		mk(4, StatusRejected, "15000"),
	)

	st, err := newTestService(repo).Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(4), st.TotalOrders)
	assert.Equal(t, int64(3), st.ApprovedOrders)
	assert.Equal(t, int64(1), st.RejectedOrders)
	assert.Equal(t, int64(0), st.PendingOrders)
	assert.Equal(t, int64(0), st.CancelledOrders)
	// Revenue counts approved orders only.
	assert.True(t, st.TotalRevenue.Equal(decimal.RequireFromString("60000")),
		st.TotalRevenue.String())
	assert.True(t, st.AverageOrderAmount.Equal(decimal.RequireFromString("20000")),
		st.AverageOrderAmount.String())
}

func TestService_Stats_EmptyStore(t *testing.T) {
	st, err := newTestService(newMemRepo()).Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(0), st.TotalOrders)
	assert.True(t, st.TotalRevenue.IsZero())
	assert.True(t, st.AverageOrderAmount.IsZero())
}
