package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/milsabores/ventas/internal/domain/auth"
	"github.com/milsabores/ventas/internal/domain/order"
	"github.com/milsabores/ventas/internal/payment"
	"github.com/milsabores/ventas/internal/webpay"
)

type stubOrderRepo struct {
	mu     sync.Mutex
	nextID int64
	orders map[string]*order.Order
}

func newStubOrderRepo(orders ...*order.Order) *stubOrderRepo {
	r := &stubOrderRepo{nextID: 1, orders: make(map[string]*order.Order)}
	for _, o := range orders {
		cp := *o
		if cp.ID >= r.nextID {
			r.nextID = cp.ID + 1
		}
		r.orders[cp.BuyOrder] = &cp
	}
	return r
}

func (r *stubOrderRepo) Create(_ context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[o.BuyOrder]; ok {
		return &order.DuplicateError{BuyOrder: o.BuyOrder}
	}
	o.ID = r.nextID
	r.nextID++
	cp := *o
	r.orders[o.BuyOrder] = &cp
	return nil
}

func (r *stubOrderRepo) Get(_ context.Context, id int64) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.ID == id {
			cp := *o
			return &cp, nil
		}
	}
	return nil, order.ErrNotFound
}

func (r *stubOrderRepo) GetByBuyOrder(_ context.Context, buyOrder string) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[buyOrder]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, order.ErrNotFound
}

func (r *stubOrderRepo) ExistsByBuyOrder(_ context.Context, buyOrder string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.orders[buyOrder]
	return ok, nil
}

func (r *stubOrderRepo) UpdateByBuyOrder(_ context.Context, buyOrder string, fn func(*order.Order) error) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[buyOrder]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	if err := fn(&cp); err != nil {
		return nil, err
	}
	r.orders[buyOrder] = &cp
	out := cp
	return &out, nil
}

func (r *stubOrderRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, o := range r.orders {
		if o.ID == id {
			delete(r.orders, key)
			return nil
		}
	}
	return order.ErrNotFound
}

func (r *stubOrderRepo) List(context.Context, order.ListParams) ([]order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []order.Order
	for _, o := range r.orders {
		out = append(out, *o)
	}
	return out, nil
}

func (r *stubOrderRepo) Count(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.orders)), nil
}

func (r *stubOrderRepo) CountByStatus(_ context.Context, s order.Status) (int64, error) {
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

func (r *stubOrderRepo) FindByStatus(_ context.Context, s order.Status) ([]order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []order.Order
	for _, o := range r.orders {
		if o.Status == s {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (r *stubOrderRepo) FindByCustomerEmail(_ context.Context, email string) ([]order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []order.Order
	for _, o := range r.orders {
		if o.Customer.Email == email {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (r *stubOrderRepo) FindCreatedBetween(context.Context, time.Time, time.Time) ([]order.Order, error) {
	return nil, nil
}

func (r *stubOrderRepo) FindRecent(context.Context, int) ([]order.Order, error) {
	return nil, nil
}

var _ order.Repository = (*stubOrderRepo)(nil)

type stubGateway struct {
	commitFn func(ctx context.Context, token string) (*webpay.Result, error)
}

func (g *stubGateway) Create(_ context.Context, buyOrder string, _ int64, _ string) (*webpay.CreateResponse, error) {
	return &webpay.CreateResponse{Token: "tok-" + buyOrder, URL: "https://webpay.example/init"}, nil
}

func (g *stubGateway) Commit(ctx context.Context, token string) (*webpay.Result, error) {
	return g.commitFn(ctx, token)
}

func (g *stubGateway) Status(context.Context, string) (*webpay.Result, error) {
	return &webpay.Result{Status: "INITIALIZED"}, nil
}

func (g *stubGateway) Refund(context.Context, string, int64) (bool, error) {
	return true, nil
}

type stubKeyRepo struct {
	hashes map[string]*auth.APIKeyInfo
}

func (r *stubKeyRepo) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	if info, ok := r.hashes[hash]; ok {
		return info, nil
	}
	return nil, auth.ErrKeyNotFound
}

const (
	testAPIKey         = "test-key"
	testReadOnlyAPIKey = "readonly-key"
	testPepper         = "pepper"
)

func hashKey(key string) string {
	mac := hmac.New(sha256.New, []byte(testPepper))
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

func newTestServer(t *testing.T, repo *stubOrderRepo, gw payment.Gateway) *httptest.Server {
	t.Helper()

	writeHash := hashKey(testAPIKey)
	readHash := hashKey(testReadOnlyAPIKey)
	keys := &stubKeyRepo{hashes: map[string]*auth.APIKeyInfo{
		writeHash: {ID: "k1", KeyHash: writeHash, Name: "test", Scopes: []string{auth.ScopeOrdersWrite}},
		readHash:  {ID: "k2", KeyHash: readHash, Name: "readonly"},
	}}

	h := NewHandler(
		order.NewService(repo),
		payment.NewService(gw, repo, payment.RetryConfig{Attempts: 1}),
	)
	mux := http.NewServeMux()
	h.Routes(mux, APIKeyAuth(keys, []byte(testPepper), auth.ScopeOrdersWrite))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, body string, authenticated bool) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if authenticated {
		req.Header.Set("X-API-Key", testAPIKey)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeEnvelope(t *testing.T, resp *http.Response) envelope {
	t.Helper()
	var e envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
	return e
}

const createOrderBody = `{
	"buy_order": "ORD-1",
	"amount": 90000,
	"discount_amount": 5000,
	"payment_method": "WEBPAY",
	"customer": {
		"name": "Sofía Rojas",
		"email": "sofia@example.com",
		"phone": "+56911112222",
		"address": "Av. Siempre Viva 742",
		"comuna": "Providencia",
		"city": "Santiago"
	},
	"items": [
		{"product_code": "TC001", "product_name": "Torta de Chocolate", "unit_price": 45000, "quantity": 2}
	]
}`

func TestCreateOrder(t *testing.T) {
	srv := newTestServer(t, newStubOrderRepo(), &stubGateway{})

	resp := doJSON(t, "POST", srv.URL+"/api/orders", createOrderBody, true)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	e := decodeEnvelope(t, resp)
	assert.True(t, e.Success)

	data, _ := json.Marshal(e.Data)
	var got orderResponse
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "ORD-1", got.BuyOrder)
	assert.Equal(t, order.StatusPending, got.Status)
	assert.True(t, got.FinalAmount.Equal(decimal.RequireFromString("85000")))
}

func TestCreateOrderAmountsEncodeAsDecimalStrings(t *testing.T) {
	srv := newTestServer(t, newStubOrderRepo(), &stubGateway{})

	resp := doJSON(t, "POST", srv.URL+"/api/orders", createOrderBody, true)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	// Amounts travel as quoted decimal strings; clients must not assume
	// JSON numbers.
	assert.Contains(t, string(body), `"final_amount":"85000"`)
	assert.Contains(t, string(body), `"amount":"90000"`)
}

func TestCreateOrder_RequiresAuth(t *testing.T) {
	srv := newTestServer(t, newStubOrderRepo(), &stubGateway{})

	resp := doJSON(t, "POST", srv.URL+"/api/orders", createOrderBody, false)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, "POST", srv.URL+"/api/orders", createOrderBody, true)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestCreateOrder_RequiresWriteScope(t *testing.T) {
	srv := newTestServer(t, newStubOrderRepo(), &stubGateway{})

	req, err := http.NewRequest("POST", srv.URL+"/api/orders", strings.NewReader(createOrderBody))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", testReadOnlyAPIKey)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCreateOrder_Duplicate(t *testing.T) {
	srv := newTestServer(t, newStubOrderRepo(), &stubGateway{})

	resp := doJSON(t, "POST", srv.URL+"/api/orders", createOrderBody, true)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, "POST", srv.URL+"/api/orders", createOrderBody, true)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.False(t, decodeEnvelope(t, resp).Success)
}

func TestGetOrder_NotFound(t *testing.T) {
	srv := newTestServer(t, newStubOrderRepo(), &stubGateway{})

	resp := doJSON(t, "GET", srv.URL+"/api/orders/99", "", false)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCancelOrder_Conflict(t *testing.T) {
	repo := newStubOrderRepo(&order.Order{ID: 1, BuyOrder: "ORD-1", Status: order.StatusApproved})
	srv := newTestServer(t, repo, &stubGateway{})

	resp := doJSON(t, "POST", srv.URL+"/api/orders/1/cancel", "", true)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCommit_TokenFromQuery(t *testing.T) {
	repo := newStubOrderRepo(&order.Order{ID: 1, BuyOrder: "ORD-1", Status: order.StatusPending})
	gw := &stubGateway{
		commitFn: func(_ context.Context, token string) (*webpay.Result, error) {
			assert.Equal(t, "tok-1", token)
			return &webpay.Result{
				BuyOrder:          "ORD-1",
				Status:            "AUTHORIZED",
				ResponseCode:      0,
				AuthorizationCode: "1213",
				CardNumber:        "6623",
			}, nil
		},
	}
	srv := newTestServer(t, repo, gw)

	resp := doJSON(t, "GET", srv.URL+"/api/webpay/commit?token_ws=tok-1", "", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decodeEnvelope(t, resp).Success)

	o, err := repo.GetByBuyOrder(context.Background(), "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, order.StatusApproved, o.Status)
}

func TestCommit_UnknownOrderStillSucceeds(t *testing.T) {
	gw := &stubGateway{
		commitFn: func(context.Context, string) (*webpay.Result, error) {
			return &webpay.Result{
				BuyOrder:     "ORD-404",
				Status:       "AUTHORIZED",
				ResponseCode: 0,
			}, nil
		},
	}
	srv := newTestServer(t, newStubOrderRepo(), gw)

	// The gateway callback must never see a failure status for a local
	// mismatch, or it will keep retrying.
	resp := doJSON(t, "POST", srv.URL+"/api/webpay/commit?token_ws=tok-x", "", false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCommit_MissingToken(t *testing.T) {
	srv := newTestServer(t, newStubOrderRepo(), &stubGateway{})

	resp := doJSON(t, "POST", srv.URL+"/api/webpay/commit", "", false)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAbort_AlwaysAcknowledged(t *testing.T) {
	srv := newTestServer(t, newStubOrderRepo(), &stubGateway{})

	resp := doJSON(t, "GET", srv.URL+"/api/webpay/abort?TBK_TOKEN=tok-1", "", false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStats(t *testing.T) {
	repo := newStubOrderRepo(
		&order.Order{ID: 1, BuyOrder: "A", Status: order.StatusApproved, FinalAmount: decimal.RequireFromString("10000")},
		&order.Order{ID: 2, BuyOrder: "B", Status: order.StatusApproved, FinalAmount: decimal.RequireFromString("20000")},
		&order.Order{ID: 3, BuyOrder: "C", Status: order.StatusRejected, FinalAmount: decimal.RequireFromString("5000")},
	)
	srv := newTestServer(t, repo, &stubGateway{})

	resp := doJSON(t, "GET", srv.URL+"/api/orders/stats", "", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data, _ := json.Marshal(decodeEnvelope(t, resp).Data)
	var st statsResponse
	require.NoError(t, json.Unmarshal(data, &st))
	assert.Equal(t, int64(3), st.TotalOrders)
	assert.Equal(t, int64(2), st.ApprovedOrders)
	assert.True(t, st.TotalRevenue.Equal(decimal.RequireFromString("30000")))
	assert.True(t, st.AverageOrderAmount.Equal(decimal.RequireFromString("15000")))
}
