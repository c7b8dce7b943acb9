package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/milsabores/ventas/internal/domain/order"
)

type initPaymentRequest struct {
	BuyOrder  string `json:"buy_order"`
	SessionID string `json:"session_id"`
}

type initPaymentResponse struct {
	Token       string `json:"token"`
	URL         string `json:"url"`
	RedirectURL string `json:"redirect_url"`
	BuyOrder    string `json:"buy_order"`
}

func (h *Handler) initPayment(w http.ResponseWriter, r *http.Request) {
	var req initPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.BuyOrder == "" {
		writeFailure(w, http.StatusBadRequest, "buy_order is required")
		return
	}

	res, err := h.payments.Start(r.Context(), req.BuyOrder, req.SessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, initPaymentResponse{
		Token:       res.Token,
		URL:         res.URL,
		RedirectURL: res.RedirectURL,
		BuyOrder:    res.BuyOrder,
	})
}

type commitPaymentResponse struct {
	Approved          bool         `json:"approved"`
	AlreadyProcessed  bool         `json:"already_processed,omitempty"`
	BuyOrder          string       `json:"buy_order,omitempty"`
	Amount            int64        `json:"amount,omitempty"`
	AuthorizationCode string       `json:"authorization_code,omitempty"`
	CardNumber        string       `json:"card_number,omitempty"`
	ResponseCode      int          `json:"response_code"`
	OrderStatus       order.Status `json:"order_status,omitempty"`
	TransactionDate   *time.Time   `json:"transaction_date,omitempty"`
}

// commitPayment handles the gateway's return call, both the POST form and
// the GET redirect. The token arrives as token_ws on a completed flow or as
// TBK_TOKEN when the customer aborted at the gateway. Whatever happens
// locally, the callback itself gets an HTTP-level success so the gateway
// stops retrying.
func (h *Handler) commitPayment(w http.ResponseWriter, r *http.Request) {
	token := h.callbackToken(r)
	if token == "" {
		writeFailure(w, http.StatusBadRequest, "missing transaction token")
		return
	}

	res, err := h.payments.Confirm(r.Context(), token)
	if err != nil {
		zctx.From(r.Context()).Error("Payment confirmation failed",
			zap.String("token", token), zap.Error(err))
		writeJSON(w, http.StatusOK, envelope{
			Success: false,
			Message: "payment confirmation could not be completed",
		})
		return
	}

	var txDate *time.Time
	if !res.TransactionDate.IsZero() {
		txDate = &res.TransactionDate
	}
	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: res.Message,
		Data: commitPaymentResponse{
			Approved:          res.Success,
			AlreadyProcessed:  res.AlreadyProcessed,
			BuyOrder:          res.BuyOrder,
			Amount:            res.Amount,
			AuthorizationCode: res.AuthorizationCode,
			CardNumber:        res.CardNumber,
			ResponseCode:      res.ResponseCode,
			OrderStatus:       res.OrderStatus,
			TransactionDate:   txDate,
		},
	})
}

// callbackToken extracts the transaction token from a gateway callback,
// checking the form body and the query string for token_ws, then TBK_TOKEN.
func (h *Handler) callbackToken(r *http.Request) string {
	if r.Method == http.MethodPost {
		_ = r.ParseForm()
	}
	for _, key := range []string{"token_ws", "TBK_TOKEN"} {
		if v := r.FormValue(key); v != "" {
			return v
		}
		if v := r.URL.Query().Get(key); v != "" {
			return v
		}
	}
	return ""
}

func (h *Handler) paymentStatus(w http.ResponseWriter, r *http.Request) {
	res, err := h.payments.Status(r.Context(), r.PathValue("token"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

type refundRequest struct {
	Amount int64 `json:"amount"`
}

func (h *Handler) refundPayment(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}

	accepted, err := h.payments.Refund(r.Context(), r.PathValue("token"), req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !accepted {
		writeJSON(w, http.StatusOK, envelope{Success: false, Message: "refund rejected by gateway"})
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "refund accepted"})
}

// abortPayment acknowledges the gateway's abort notification. The order stays
// PENDING; the customer can retry the payment.
func (h *Handler) abortPayment(w http.ResponseWriter, r *http.Request) {
	zctx.From(r.Context()).Info("Payment aborted at gateway",
		zap.String("token", h.callbackToken(r)))
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "payment aborted"})
}
