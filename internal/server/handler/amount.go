package handler

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// fiatAmount accepts amount_idr as either a JSON number or a numeric
// string. Null and the empty string decode to zero so the service reports
// the missing field.
type fiatAmount struct {
	decimal.Decimal
}

func (a *fiatAmount) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte(`""`)) {
		a.Decimal = decimal.Zero
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		d, err := decimal.NewFromString(string(bytes.TrimSpace([]byte(s))))
		if err != nil {
			return err
		}
		a.Decimal = d
		return nil
	}
	return a.Decimal.UnmarshalJSON(trimmed)
}
