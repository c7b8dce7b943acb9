// Package webpay is a narrow client for the Transbank WebPay Plus REST API.
// It performs the four remote operations the order workflow needs — create,
// commit, status, refund — and maps transport and gateway failures into a
// typed error taxonomy. It never retries; callers own the retry policy.
package webpay

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Gateway response-code and status markers. A transaction is approved only
// when both match: the numeric response code is zero AND the status string is
// the authorized marker. Either one failing means the payment was declined.
const (
	responseCodeOK   = 0
	statusAuthorized = "AUTHORIZED"
)

// Typed gateway failures.
var (
	// ErrUnavailable covers network failures, timeouts, and gateway 5xx
	// responses. The remote outcome is unknown; callers confirming a payment
	// should re-query via Status before giving up.
	ErrUnavailable = errors.New("webpay unavailable")
	// ErrMalformedResponse covers 2xx responses whose body cannot be decoded
	// or is missing required fields.
	ErrMalformedResponse = errors.New("malformed webpay response")
	// ErrAlreadyProcessed is the gateway's 422: the token was already
	// committed or has expired. Surfaced distinctly so duplicate callbacks
	// are not treated as hard failures.
	ErrAlreadyProcessed = errors.New("transaction already processed or expired")
)

// UnexpectedStatusError reports a gateway response code outside the known
// taxonomy, such as a 401 for bad credentials.
type UnexpectedStatusError struct {
	StatusCode int
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("unexpected webpay status %d", e.StatusCode)
}

// CreateResponse is the outcome of initiating a transaction: an opaque token
// and the hosted payment form URL the customer must be redirected to.
type CreateResponse struct {
	Token string
	URL   string
}

// Result is the gateway's authoritative outcome for one transaction token,
// as returned by both the commit and status endpoints.
type Result struct {
	VCI                string
	Amount             int64
	Status             string
	BuyOrder           string
	SessionID          string
	CardNumber         string // last four digits only
	AccountingDate     string
	TransactionDate    string
	AuthorizationCode  string
	PaymentTypeCode    string
	ResponseCode       int
	InstallmentsNumber int
	InstallmentsAmount int64
}

// Approved reports whether the gateway authorized the payment. Both the
// response code and the status string must match their success markers.
func (r *Result) Approved() bool {
	return r.ResponseCode == responseCodeOK && r.Status == statusAuthorized
}
