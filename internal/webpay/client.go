package webpay

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Authentication headers required by the gateway.
const (
	headerAPIKeyID     = "Tbk-Api-Key-Id"     // commerce code
	headerAPIKeySecret = "Tbk-Api-Key-Secret" // API key
)

const transactionsPath = "/rswebpaytransaction/api/webpay/v1.2/transactions"

// Config holds the client construction parameters. BaseURL selects the
// integration or production gateway explicitly; there is no ambient
// environment switch.
type Config struct {
	BaseURL      string
	CommerceCode string
	APIKey       string
	// ReturnURL is where the gateway redirects the customer after payment.
	ReturnURL string
	// HTTPClient overrides the transport. When nil a client with a 10 second
	// timeout is used; per-call deadlines come from the caller's context.
	HTTPClient *http.Client
}

// Client talks to the WebPay Plus REST API.
type Client struct {
	cfg  Config
	http *http.Client
}

// New creates a gateway Client from the given configuration.
func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{cfg: cfg, http: hc}
}

type createRequest struct {
	BuyOrder  string `json:"buy_order"`
	SessionID string `json:"session_id"`
	Amount    int64  `json:"amount"`
	ReturnURL string `json:"return_url"`
}

// Create initiates a transaction for the given buy order and amount (integer
// minor currency units). It returns the transaction token and the payment
// form URL.
func (c *Client) Create(ctx context.Context, buyOrder string, amount int64, sessionID string) (*CreateResponse, error) {
	if amount <= 0 {
		return nil, errors.Errorf("amount must be positive, got %d", amount)
	}

	body, err := json.Marshal(createRequest{
		BuyOrder:  buyOrder,
		SessionID: sessionID,
		Amount:    amount,
		ReturnURL: c.cfg.ReturnURL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "encode create request")
	}

	zctx.From(ctx).Info("Creating webpay transaction",
		zap.String("buy_order", buyOrder), zap.Int64("amount", amount))

	raw, err := c.do(ctx, http.MethodPost, transactionsPath, body)
	if err != nil {
		return nil, err
	}

	resp, err := decodeCreateResponse(raw)
	if err != nil {
		return nil, errors.Wrap(ErrMalformedResponse, err.Error())
	}

	return resp, nil
}

// Commit asks the gateway to settle the transaction and returns its
// authoritative result. A gateway 422 maps to ErrAlreadyProcessed.
func (c *Client) Commit(ctx context.Context, token string) (*Result, error) {
	zctx.From(ctx).Info("Committing webpay transaction", zap.String("token", token))

	raw, err := c.do(ctx, http.MethodPut, transactionsPath+"/"+token, nil)
	if err != nil {
		return nil, err
	}

	res, err := decodeResult(raw)
	if err != nil {
		return nil, errors.Wrap(ErrMalformedResponse, err.Error())
	}

	return res, nil
}

// Status re-queries the current state of a transaction. Same result shape as
// Commit but read-only; used for reconciliation after an ambiguous commit.
func (c *Client) Status(ctx context.Context, token string) (*Result, error) {
	raw, err := c.do(ctx, http.MethodGet, transactionsPath+"/"+token, nil)
	if err != nil {
		return nil, err
	}

	res, err := decodeResult(raw)
	if err != nil {
		return nil, errors.Wrap(ErrMalformedResponse, err.Error())
	}

	return res, nil
}

// Refund attempts a same-day reversal of the given amount. A business-level
// rejection by the gateway returns (false, nil); only transport failure is an
// error.
func (c *Client) Refund(ctx context.Context, token string, amount int64) (bool, error) {
	body, err := json.Marshal(map[string]int64{"amount": amount})
	if err != nil {
		return false, errors.Wrap(err, "encode refund request")
	}

	zctx.From(ctx).Info("Refunding webpay transaction",
		zap.String("token", token), zap.Int64("amount", amount))

	_, err = c.do(ctx, http.MethodPost, transactionsPath+"/"+token+"/refunds", body)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return false, err
		}
		// 4xx: the gateway refused the reversal for business reasons
		// (wrong state, past the same-day window). Not an error.
		zctx.From(ctx).Warn("Webpay rejected refund",
			zap.String("token", token), zap.Error(err))
		return false, nil
	}

	return true, nil
}

// do performs one HTTP exchange and maps the response status into the error
// taxonomy. It returns the raw body for 2xx responses.
func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerAPIKeyID, c.cfg.CommerceCode)
	req.Header.Set(headerAPIKeySecret, c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		// Network failure or timeout: the remote outcome is unknown.
		return nil, errors.Wrapf(ErrUnavailable, "%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrapf(ErrUnavailable, "read response: %v", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return raw, nil
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, ErrAlreadyProcessed
	case resp.StatusCode >= 500:
		return nil, errors.Wrapf(ErrUnavailable, "gateway returned %d", resp.StatusCode)
	default:
		return nil, &UnexpectedStatusError{StatusCode: resp.StatusCode}
	}
}
