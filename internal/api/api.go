// Package api exposes the order workflow and the payment boundary over HTTP.
// Handlers stay thin: decode, delegate to a domain service, encode the
// envelope. Domain errors are mapped to status codes in one place.
package api

import (
	"net/http"

	"github.com/milsabores/ventas/internal/domain/order"
	"github.com/milsabores/ventas/internal/payment"
)

// Handler serves the order and payment endpoints.
type Handler struct {
	orders   *order.Service
	payments *payment.Service
}

// NewHandler constructs a Handler with the required domain services.
func NewHandler(orders *order.Service, payments *payment.Service) *Handler {
	return &Handler{orders: orders, payments: payments}
}

// Routes registers all API routes on mux. Mutating order endpoints and
// payment initiation require an API key; the gateway callback endpoints are
// open because WebPay calls back without credentials.
func (h *Handler) Routes(mux *http.ServeMux, auth func(http.Handler) http.Handler) {
	protected := func(fn http.HandlerFunc) http.Handler { return auth(fn) }

	mux.Handle("POST /api/orders", protected(h.createOrder))
	mux.HandleFunc("GET /api/orders", h.listOrders)
	mux.HandleFunc("GET /api/orders/stats", h.orderStats)
	mux.HandleFunc("GET /api/orders/recent", h.recentOrders)
	mux.HandleFunc("GET /api/orders/range", h.ordersBetween)
	mux.HandleFunc("GET /api/orders/status/{status}", h.ordersByStatus)
	mux.HandleFunc("GET /api/orders/customer/{email}", h.ordersByCustomer)
	mux.HandleFunc("GET /api/orders/buy-order/{buyOrder}", h.getOrderByBuyOrder)
	mux.Handle("PUT /api/orders/buy-order/{buyOrder}/status", protected(h.updateStatusByBuyOrder))
	mux.HandleFunc("GET /api/orders/{id}", h.getOrder)
	mux.Handle("PUT /api/orders/{id}/status", protected(h.updateStatus))
	mux.Handle("POST /api/orders/{id}/cancel", protected(h.cancelOrder))
	mux.Handle("DELETE /api/orders/{id}", protected(h.deleteOrder))

	mux.Handle("POST /api/webpay/init", protected(h.initPayment))
	mux.HandleFunc("POST /api/webpay/commit", h.commitPayment)
	mux.HandleFunc("GET /api/webpay/commit", h.commitPayment)
	mux.HandleFunc("GET /api/webpay/status/{token}", h.paymentStatus)
	mux.Handle("POST /api/webpay/refund/{token}", protected(h.refundPayment))
	mux.HandleFunc("POST /api/webpay/abort", h.abortPayment)
	mux.HandleFunc("GET /api/webpay/abort", h.abortPayment)
}
