package api

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/milsabores/ventas/internal/domain/order"
	"github.com/milsabores/ventas/internal/webpay"
)

// writeError maps a domain error to an HTTP response. Unknown errors are
// logged and collapsed into an opaque 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, order.ErrNotFound):
		writeFailure(w, http.StatusNotFound, "order not found")
		return
	case errors.Is(err, order.ErrEmptyItems),
		errors.Is(err, order.ErrNegativeFinalAmount):
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	var (
		dupErr *order.DuplicateError
		opErr  *order.InvalidOperationError
		stErr  *order.InvalidStatusError
		qErr   *order.InvalidQuantityError
		pErr   *order.InvalidPriceError
	)
	switch {
	case errors.As(err, &dupErr):
		writeFailure(w, http.StatusConflict, dupErr.Error())
		return
	case errors.As(err, &opErr):
		writeFailure(w, http.StatusConflict, opErr.Error())
		return
	case errors.As(err, &stErr):
		writeFailure(w, http.StatusBadRequest, stErr.Error())
		return
	case errors.As(err, &qErr):
		writeFailure(w, http.StatusUnprocessableEntity, qErr.Error())
		return
	case errors.As(err, &pErr):
		writeFailure(w, http.StatusUnprocessableEntity, pErr.Error())
		return
	}

	if errors.Is(err, webpay.ErrUnavailable) {
		writeFailure(w, http.StatusBadGateway, "payment gateway unavailable")
		return
	}

	zctx.From(r.Context()).Error("Unhandled error", zap.Error(err))
	writeFailure(w, http.StatusInternalServerError, "internal error")
}
