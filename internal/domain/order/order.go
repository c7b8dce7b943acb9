package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates the lifecycle states of an order.
//
// The payment flow moves PENDING -> APPROVED | REJECTED | CANCELLED, and the
// fulfilment flow moves APPROVED -> PROCESSING -> READY -> DELIVERED. The
// administrative status update deliberately allows any valid value to be set
// directly; only cancellation and deletion have hard preconditions.
type Status string

const (
	// StatusPending means the order was created and payment has not settled.
	StatusPending Status = "PENDING"
	// StatusApproved means the gateway authorized the payment.
	StatusApproved Status = "APPROVED"
	// StatusRejected means the gateway declined the payment.
	StatusRejected Status = "REJECTED"
	// StatusCancelled means the order was cancelled before payment.
	StatusCancelled Status = "CANCELLED"
	// StatusProcessing means the order is being prepared.
	StatusProcessing Status = "PROCESSING"
	// StatusReady means the order is ready for delivery or pickup.
	StatusReady Status = "READY"
	// StatusDelivered means the order was handed to the customer.
	StatusDelivered Status = "DELIVERED"
)

// Valid reports whether s is one of the known status values.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled,
		StatusProcessing, StatusReady, StatusDelivered:
		return true
	default:
		return false
	}
}

// Deletable reports whether an order in this status may be deleted.
// Deletion is a cleanup operation for failed or abandoned orders only, so it
// is restricted to CANCELLED and REJECTED. DELIVERED is terminal for the
// workflow but not deletable.
func (s Status) Deletable() bool {
	return s == StatusCancelled || s == StatusRejected
}

// Method enumerates the supported payment methods.
type Method string

const (
	// MethodWebpay pays by card through the WebPay gateway.
	MethodWebpay Method = "WEBPAY"
	// MethodBankTransfer pays by manual bank transfer.
	MethodBankTransfer Method = "BANK_TRANSFER"
	// MethodCash pays in cash on store pickup.
	MethodCash Method = "CASH"
)

// Valid reports whether m is one of the known payment methods.
func (m Method) Valid() bool {
	switch m {
	case MethodWebpay, MethodBankTransfer, MethodCash:
		return true
	default:
		return false
	}
}

// Customer holds the buyer contact details embedded in an order.
// All fields are required and validated at the request boundary.
type Customer struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Comuna  string `json:"comuna"`
	City    string `json:"city"`
}

// Item is a single line item owned exclusively by its order. Subtotal is
// always unitPrice * quantity and is recomputed whenever either changes.
type Item struct {
	ID            int64           `json:"id"`
	ProductCode   string          `json:"product_code"`
	ProductName   string          `json:"product_name"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Quantity      int             `json:"quantity"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	SizeOption    string          `json:"size_option,omitempty"`
	CustomMessage string          `json:"custom_message,omitempty"`
}

// RecalcSubtotal recomputes Subtotal from UnitPrice and Quantity.
func (i *Item) RecalcSubtotal() {
	i.Subtotal = i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is the aggregate root for one customer purchase and its payment
// outcome. Identity is the surrogate ID plus the caller-supplied unique
// business key BuyOrder.
type Order struct {
	ID       int64
	BuyOrder string
	Status   Status

	Amount         decimal.Decimal
	DiscountAmount decimal.Decimal
	// FinalAmount is always Amount - DiscountAmount, computed at creation
	// and never mutated independently.
	FinalAmount decimal.Decimal

	AuthorizationCode string
	CardSuffix        string
	ErrorMessage      string

	PaymentMethod Method
	Customer      Customer
	Items         []Item

	CreatedAt       time.Time
	UpdatedAt       time.Time
	TransactionDate *time.Time
}

// StatusDetails carries the status-specific fields for a transition:
// authorization data for APPROVED, the error message for REJECTED.
type StatusDetails struct {
	AuthorizationCode string
	CardSuffix        string
	ErrorMessage      string
}

// Approve records an authorized payment result: status APPROVED,
// authorization code and masked card suffix set, transaction date stamped.
func (o *Order) Approve(authorizationCode, cardSuffix string, txDate, now time.Time) error {
	if authorizationCode == "" {
		return ErrAuthorizationRequired
	}
	o.Status = StatusApproved
	o.AuthorizationCode = authorizationCode
	o.CardSuffix = cardSuffix
	o.TransactionDate = &txDate
	o.UpdatedAt = now
	return nil
}

// Reject records a declined payment result: status REJECTED, error message
// set, transaction date stamped.
func (o *Order) Reject(errorMessage string, txDate, now time.Time) error {
	if errorMessage == "" {
		return ErrErrorMessageRequired
	}
	o.Status = StatusRejected
	o.ErrorMessage = errorMessage
	o.TransactionDate = &txDate
	o.UpdatedAt = now
	return nil
}

// ApplyStatus performs the administrative status update. Any valid status may
// be set directly; transitions to APPROVED and REJECTED go through Approve and
// Reject so their field population rules hold on every entry point.
func (o *Order) ApplyStatus(s Status, d StatusDetails, now time.Time) error {
	if !s.Valid() {
		return &InvalidStatusError{Value: string(s)}
	}

	switch s {
	case StatusApproved:
		return o.Approve(d.AuthorizationCode, d.CardSuffix, now, now)
	case StatusRejected:
		return o.Reject(d.ErrorMessage, now, now)
	default:
		o.Status = s
		o.UpdatedAt = now
		return nil
	}
}

// Cancel moves the order to CANCELLED. Permitted only from PENDING.
func (o *Order) Cancel(now time.Time) error {
	if o.Status != StatusPending {
		return &InvalidOperationError{Op: "cancel", Status: o.Status}
	}
	o.Status = StatusCancelled
	o.UpdatedAt = now
	return nil
}
