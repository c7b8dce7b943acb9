package webpay

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// decodeCreateResponse parses the create endpoint body. Both fields are
// required; a 2xx body missing either is malformed.
func decodeCreateResponse(data []byte) (*CreateResponse, error) {
	var out CreateResponse
	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "token":
			return readStr(d, &out.Token)
		case "url":
			return readStr(d, &out.URL)
		default:
			return d.Skip()
		}
	}); err != nil {
		return nil, errors.Wrap(err, "decode create response")
	}

	if out.Token == "" || out.URL == "" {
		return nil, errors.New("create response missing token or url")
	}
	return &out, nil
}

// decodeResult parses the commit/status endpoint body. Unknown fields are
// skipped; the gateway adds fields without versioning the endpoint.
func decodeResult(data []byte) (*Result, error) {
	var out Result
	seenBuyOrder := false

	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "vci":
			return readStr(d, &out.VCI)
		case "amount":
			return readInt64(d, &out.Amount)
		case "status":
			return readStr(d, &out.Status)
		case "buy_order":
			seenBuyOrder = true
			return readStr(d, &out.BuyOrder)
		case "session_id":
			return readStr(d, &out.SessionID)
		case "card_detail":
			if d.Next() == jx.Null {
				return d.Null()
			}
			return d.Obj(func(d *jx.Decoder, key string) error {
				if key == "card_number" {
					return readStr(d, &out.CardNumber)
				}
				return d.Skip()
			})
		case "accounting_date":
			return readStr(d, &out.AccountingDate)
		case "transaction_date":
			return readStr(d, &out.TransactionDate)
		case "authorization_code":
			return readStr(d, &out.AuthorizationCode)
		case "payment_type_code":
			return readStr(d, &out.PaymentTypeCode)
		case "response_code":
			return readInt(d, &out.ResponseCode)
		case "installments_number":
			return readInt(d, &out.InstallmentsNumber)
		case "installments_amount":
			return readInt64(d, &out.InstallmentsAmount)
		default:
			return d.Skip()
		}
	}); err != nil {
		return nil, errors.Wrap(err, "decode transaction result")
	}

	if !seenBuyOrder || out.Status == "" {
		return nil, errors.New("transaction result missing buy_order or status")
	}
	return &out, nil
}

// readStr decodes a string, treating JSON null as the empty string.
func readStr(d *jx.Decoder, dst *string) error {
	if d.Next() == jx.Null {
		return d.Null()
	}
	v, err := d.Str()
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

// readInt decodes an int, treating JSON null as zero.
func readInt(d *jx.Decoder, dst *int) error {
	if d.Next() == jx.Null {
		return d.Null()
	}
	v, err := d.Int()
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

// readInt64 decodes an int64, treating JSON null as zero.
func readInt64(d *jx.Decoder, dst *int64) error {
	if d.Next() == jx.Null {
		return d.Null()
	}
	v, err := d.Int64()
	if err != nil {
		return err
	}
	*dst = v
	return nil
}
