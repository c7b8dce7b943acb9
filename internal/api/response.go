package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/milsabores/ventas/internal/domain/order"
)

// envelope is the uniform response body: success flag, human message, and
// the operation payload when there is one.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, e envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(e)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Message: message})
}

// orderResponse is the wire shape of an order. Amounts are serialized as
// quoted decimal strings, decimal's default marshalling, so clients never
// lose precision to float parsing.
type orderResponse struct {
	ID                int64            `json:"id"`
	BuyOrder          string           `json:"buy_order"`
	Status            order.Status     `json:"status"`
	Amount            decimal.Decimal  `json:"amount"`
	DiscountAmount    decimal.Decimal  `json:"discount_amount"`
	FinalAmount       decimal.Decimal  `json:"final_amount"`
	AuthorizationCode string           `json:"authorization_code,omitempty"`
	CardSuffix        string           `json:"card_suffix,omitempty"`
	ErrorMessage      string           `json:"error_message,omitempty"`
	PaymentMethod     order.Method     `json:"payment_method"`
	Customer          order.Customer   `json:"customer"`
	Items             []order.Item     `json:"items"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
	TransactionDate   *time.Time       `json:"transaction_date,omitempty"`
}

func toOrderResponse(o *order.Order) orderResponse {
	return orderResponse{
		ID:                o.ID,
		BuyOrder:          o.BuyOrder,
		Status:            o.Status,
		Amount:            o.Amount,
		DiscountAmount:    o.DiscountAmount,
		FinalAmount:       o.FinalAmount,
		AuthorizationCode: o.AuthorizationCode,
		CardSuffix:        o.CardSuffix,
		ErrorMessage:      o.ErrorMessage,
		PaymentMethod:     o.PaymentMethod,
		Customer:          o.Customer,
		Items:             o.Items,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
		TransactionDate:   o.TransactionDate,
	}
}

func toOrderResponses(orders []order.Order) []orderResponse {
	out := make([]orderResponse, len(orders))
	for i := range orders {
		out[i] = toOrderResponse(&orders[i])
	}
	return out
}
