package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/milsabores/ventas/internal/domain/order"
	"github.com/milsabores/ventas/internal/webpay"
)

// errAlreadyApplied aborts the store transaction when the order already
// carries a recorded gateway result. Never escapes the package.
var errAlreadyApplied = errors.New("payment result already applied")

// Service ties the order aggregate to the payment gateway.
type Service struct {
	gateway Gateway
	orders  order.Repository
	retry   RetryConfig

	now          func() time.Time
	newSessionID func() string
}

// NewService creates a payment Service.
func NewService(gateway Gateway, orders order.Repository, retry RetryConfig) *Service {
	return &Service{
		gateway: gateway,
		orders:  orders,
		retry:   retry,
		now:     time.Now,
		newSessionID: func() string {
			return "session-" + uuid.New().String()
		},
	}
}

// Start initiates a gateway transaction for the order identified by buyOrder.
// The order is not mutated; its state changes only when the result is
// committed. The charge amount is the order's final amount in integer pesos.
func (s *Service) Start(ctx context.Context, buyOrder, sessionID string) (*InitResult, error) {
	o, err := s.orders.GetByBuyOrder(ctx, buyOrder)
	if err != nil {
		return nil, err
	}

	if sessionID == "" {
		sessionID = s.newSessionID()
	}
	amount := o.FinalAmount.Round(0).IntPart()

	resp, err := s.gateway.Create(ctx, o.BuyOrder, amount, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "initiate transaction")
	}

	return &InitResult{
		Token:       resp.Token,
		URL:         resp.URL,
		RedirectURL: resp.URL + "?token_ws=" + resp.Token,
		BuyOrder:    o.BuyOrder,
	}, nil
}

// Confirm commits the transaction identified by token and records the
// gateway's authoritative result on the order.
//
// The contract is idempotent-safe: duplicate callback delivery returns an
// AlreadyProcessed result, never an error. An unknown buy order is logged and
// reported without failing, so the boundary can always answer the gateway
// with success and stop its retries. Once the gateway has produced a result,
// the local write is retried until it lands; a consumed confirmation will not
// be resent.
func (s *Service) Confirm(ctx context.Context, token string) (*Result, error) {
	lg := zctx.From(ctx).With(zap.String("token", token))

	res, err := s.gateway.Commit(ctx, token)
	switch {
	case err == nil:
	case errors.Is(err, webpay.ErrAlreadyProcessed):
		lg.Info("Transaction already processed or expired")
		return &Result{
			AlreadyProcessed: true,
			Message:          "transaction already processed or expired",
		}, nil
	case errors.Is(err, webpay.ErrUnavailable):
		// The commit outcome is unknown: the gateway may have applied the
		// payment despite the failed response. Re-query before giving up.
		lg.Warn("Commit outcome unknown, reconciling via status query", zap.Error(err))
		res, err = s.reconcile(ctx, token)
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.Wrap(err, "commit transaction")
	}

	return s.apply(ctx, res)
}

// reconcile resolves an ambiguous commit by reading the transaction state.
// Only a settled result is usable; a transaction still sitting in
// INITIALIZED means the commit really did not happen.
func (s *Service) reconcile(ctx context.Context, token string) (*webpay.Result, error) {
	res, err := s.gateway.Status(ctx, token)
	if err != nil {
		return nil, errors.Wrap(err, "reconcile transaction")
	}
	if res.Status == "INITIALIZED" {
		return nil, errors.Wrap(webpay.ErrUnavailable, "transaction not committed")
	}
	return res, nil
}

// apply records a gateway result on the order under the per-aggregate lock.
func (s *Service) apply(ctx context.Context, res *webpay.Result) (*Result, error) {
	lg := zctx.From(ctx).With(zap.String("buy_order", res.BuyOrder))

	out := &Result{
		Success:           res.Approved(),
		BuyOrder:          res.BuyOrder,
		Amount:            res.Amount,
		AuthorizationCode: res.AuthorizationCode,
		CardNumber:        res.CardNumber,
		PaymentType:       res.PaymentTypeCode,
		Installments:      res.InstallmentsNumber,
		ResponseCode:      res.ResponseCode,
		TransactionDate:   s.parseTransactionDate(ctx, res.TransactionDate),
	}
	if out.Success {
		out.Message = "payment approved"
		out.OrderStatus = order.StatusApproved
	} else {
		out.Message = "payment rejected"
		out.OrderStatus = order.StatusRejected
	}

	updated, err := s.updateWithRetry(ctx, res, out.TransactionDate)
	switch {
	case err == nil:
		out.OrderUpdated = true
		lg.Info("Order updated from gateway result",
			zap.String("status", string(updated.Status)))
	case errors.Is(err, errAlreadyApplied):
		// Duplicate callback: exactly one financial state change happened,
		// and it was not this one.
		out.AlreadyProcessed = true
		lg.Info("Gateway result already applied, skipping update")
	case errors.Is(err, order.ErrNotFound):
		// The gateway knows a buy order we do not. Log it loudly but answer
		// the callback normally; failing here only provokes a retry storm.
		lg.Warn("No order matches gateway result")
	default:
		return nil, errors.Wrap(err, "record gateway result")
	}

	return out, nil
}

// updateWithRetry performs the atomic order transition, retrying transient
// store failures so an already-consumed gateway result is never lost.
func (s *Service) updateWithRetry(ctx context.Context, res *webpay.Result, txDate time.Time) (*order.Order, error) {
	var updated *order.Order

	err := retry(ctx, s.retry, func() error {
		var err error
		updated, err = s.orders.UpdateByBuyOrder(ctx, res.BuyOrder, func(o *order.Order) error {
			// Serialized against concurrent confirmations for the same buy
			// order: whoever commits first wins, everyone after sees the
			// recorded result and backs off.
			if o.TransactionDate != nil {
				return errAlreadyApplied
			}
			if res.Approved() {
				return o.Approve(res.AuthorizationCode, res.CardNumber, txDate, s.now())
			}
			msg := fmt.Sprintf("response code %d", res.ResponseCode)
			return o.Reject(msg, txDate, s.now())
		})
		return err
	}, func(err error) bool {
		// Business outcomes are final; only infrastructure failures retry.
		return !errors.Is(err, errAlreadyApplied) && !errors.Is(err, order.ErrNotFound)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Refund asks the gateway to reverse the transaction. The order status is
// left untouched: a reversal is a gateway-side financial operation, not a
// workflow transition.
func (s *Service) Refund(ctx context.Context, token string, amount int64) (bool, error) {
	return s.gateway.Refund(ctx, token, amount)
}

// Status reads the transaction's current gateway state without mutating
// anything.
func (s *Service) Status(ctx context.Context, token string) (*webpay.Result, error) {
	return s.gateway.Status(ctx, token)
}

// Timestamp layouts seen in gateway responses. The gateway usually sends
// RFC 3339, but sometimes reports local time with no offset.
var transactionDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
}

// parseTransactionDate parses the gateway's reported transaction time,
// falling back to the current time when absent or unparseable.
func (s *Service) parseTransactionDate(ctx context.Context, v string) time.Time {
	if v == "" {
		return s.now()
	}
	for _, layout := range transactionDateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	zctx.From(ctx).Warn("Unparseable transaction date", zap.String("value", v))
	return s.now()
}
