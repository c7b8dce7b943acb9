package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/milsabores/ventas/internal/domain/order"
)

type createOrderRequest struct {
	BuyOrder       string          `json:"buy_order"`
	Amount         decimal.Decimal `json:"amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	PaymentMethod  order.Method    `json:"payment_method"`
	Customer       order.Customer  `json:"customer"`
	Items          []struct {
		ProductCode   string          `json:"product_code"`
		ProductName   string          `json:"product_name"`
		UnitPrice     decimal.Decimal `json:"unit_price"`
		Quantity      int             `json:"quantity"`
		SizeOption    string          `json:"size_option"`
		CustomMessage string          `json:"custom_message"`
	} `json:"items"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.BuyOrder == "" {
		writeFailure(w, http.StatusBadRequest, "buy_order is required")
		return
	}

	items := make([]order.ItemRequest, len(req.Items))
	for i, it := range req.Items {
		items[i] = order.ItemRequest{
			ProductCode:   it.ProductCode,
			ProductName:   it.ProductName,
			UnitPrice:     it.UnitPrice,
			Quantity:      it.Quantity,
			SizeOption:    it.SizeOption,
			CustomMessage: it.CustomMessage,
		}
	}

	o, err := h.orders.Create(r.Context(), order.CreateRequest{
		BuyOrder:       req.BuyOrder,
		Amount:         req.Amount,
		DiscountAmount: req.DiscountAmount,
		PaymentMethod:  req.PaymentMethod,
		Customer:       req.Customer,
		Items:          items,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, toOrderResponse(o))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid order id")
		return
	}

	o, err := h.orders.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) getOrderByBuyOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.GetByBuyOrder(r.Context(), r.PathValue("buyOrder"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	orders, err := h.orders.List(r.Context(), order.ListParams{Limit: limit, Offset: offset})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toOrderResponses(orders))
}

func (h *Handler) ordersByStatus(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.FindByStatus(r.Context(), order.Status(r.PathValue("status")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toOrderResponses(orders))
}

func (h *Handler) ordersByCustomer(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.FindByCustomerEmail(r.Context(), r.PathValue("email"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toOrderResponses(orders))
}

func (h *Handler) recentOrders(w http.ResponseWriter, r *http.Request) {
	n, _ := strconv.Atoi(r.URL.Query().Get("n"))
	if n <= 0 {
		n = 10
	}

	orders, err := h.orders.FindRecent(r.Context(), n)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toOrderResponses(orders))
}

func (h *Handler) ordersBetween(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := time.Parse(time.RFC3339, q.Get("from"))
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid from timestamp")
		return
	}
	end, err := time.Parse(time.RFC3339, q.Get("to"))
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid to timestamp")
		return
	}

	orders, err := h.orders.FindCreatedBetween(r.Context(), start, end)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toOrderResponses(orders))
}

type updateStatusRequest struct {
	Status            order.Status `json:"status"`
	AuthorizationCode string       `json:"authorization_code"`
	CardSuffix        string       `json:"card_suffix"`
	ErrorMessage      string       `json:"error_message"`
}

func (req updateStatusRequest) details() order.StatusDetails {
	return order.StatusDetails{
		AuthorizationCode: req.AuthorizationCode,
		CardSuffix:        req.CardSuffix,
		ErrorMessage:      req.ErrorMessage,
	}
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid order id")
		return
	}
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), id, req.Status, req.details())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) updateStatusByBuyOrder(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.orders.UpdateStatusByBuyOrder(r.Context(), r.PathValue("buyOrder"), req.Status, req.details())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid order id")
		return
	}

	o, err := h.orders.Cancel(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid order id")
		return
	}

	if err := h.orders.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "order deleted"})
}

type statsResponse struct {
	TotalOrders        int64           `json:"total_orders"`
	PendingOrders      int64           `json:"pending_orders"`
	ApprovedOrders     int64           `json:"approved_orders"`
	RejectedOrders     int64           `json:"rejected_orders"`
	CancelledOrders    int64           `json:"cancelled_orders"`
	TotalRevenue       decimal.Decimal `json:"total_revenue"`
	AverageOrderAmount decimal.Decimal `json:"average_order_amount"`
}

func (h *Handler) orderStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.orders.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, statsResponse{
		TotalOrders:        st.TotalOrders,
		PendingOrders:      st.PendingOrders,
		ApprovedOrders:     st.ApprovedOrders,
		RejectedOrders:     st.RejectedOrders,
		CancelledOrders:    st.CancelledOrders,
		TotalRevenue:       st.TotalRevenue,
		AverageOrderAmount: st.AverageOrderAmount,
	})
}
