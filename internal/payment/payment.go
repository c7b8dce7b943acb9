// Package payment orchestrates the protocol between the order state machine
// and the WebPay gateway: initiating a transaction, committing its result
// idempotently under the store's per-aggregate lock, reconciling after
// ambiguous failures, and requesting reversals.
package payment

import (
	"context"
	"time"

	"github.com/milsabores/ventas/internal/domain/order"
	"github.com/milsabores/ventas/internal/webpay"
)

// Gateway is the narrow slice of the WebPay client the orchestrator needs.
type Gateway interface {
	Create(ctx context.Context, buyOrder string, amount int64, sessionID string) (*webpay.CreateResponse, error)
	Commit(ctx context.Context, token string) (*webpay.Result, error)
	Status(ctx context.Context, token string) (*webpay.Result, error)
	Refund(ctx context.Context, token string, amount int64) (bool, error)
}

// InitResult is the outcome of starting a payment. RedirectURL is where the
// customer's browser must be sent.
type InitResult struct {
	Token       string
	URL         string
	RedirectURL string
	BuyOrder    string
}

// Result is the outcome of confirming a payment.
type Result struct {
	Success           bool
	Message           string
	BuyOrder          string
	Amount            int64
	AuthorizationCode string
	CardNumber        string
	PaymentType       string
	Installments      int
	ResponseCode      int
	TransactionDate   time.Time
	OrderStatus       order.Status

	// AlreadyProcessed is set when the gateway or the local store reports the
	// token as already handled. Duplicate callback delivery is normal: the
	// caller must treat this as success, not failure.
	AlreadyProcessed bool
	// OrderUpdated reports whether the local order was transitioned by this
	// call. False when the result was a duplicate or the order is unknown.
	OrderUpdated bool
}
