package airdrop

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"airdropScope/internal/model"
)

// LoadOptions describes the allocation input shape.
type LoadOptions struct {
	// RecipientField and AmountField name the object keys of each row.
	RecipientField string
	AmountField    string
	// FixedAmount is used for rows that are plain address strings.
	FixedAmount string
	Decimals    int
}

// LoadAllocations parses a JSON array of allocation rows. Rows are either
// objects carrying a recipient and a decimal amount, or bare recipient
// strings paired with FixedAmount. Numeric amounts are read from their raw
// JSON text so no precision is lost.
func LoadAllocations(data []byte, opts LoadOptions) ([]model.Allocation, error) {
	if !gjson.ValidBytes(data) {
		return nil, &InvalidInputError{Index: -1, Reason: "allocation input is not valid JSON"}
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return nil, &InvalidInputError{Index: -1, Reason: "allocation input must be a JSON array"}
	}

	fixed := strings.TrimSpace(opts.FixedAmount)

	rows := root.Array()
	out := make([]model.Allocation, 0, len(rows))
	for i, row := range rows {
		var recipient, amount string
		switch {
		case row.Type == gjson.String:
			if fixed == "" {
				return nil, &InvalidInputError{Index: i, Reason: "plain address rows need a fixed amount"}
			}
			recipient, amount = row.Str, fixed
		case row.IsObject():
			fields := row.Map()
			r, ok := fields[opts.RecipientField]
			if !ok || r.Type != gjson.String {
				return nil, &InvalidInputError{Index: i, Reason: fmt.Sprintf("missing string field %q", opts.RecipientField)}
			}
			recipient = r.Str

			a, ok := fields[opts.AmountField]
			switch {
			case ok && a.Type == gjson.Number:
				amount = a.Raw
			case ok && a.Type == gjson.String:
				amount = a.Str
			case fixed != "":
				amount = fixed
			default:
				return nil, &InvalidInputError{Index: i, Reason: fmt.Sprintf("missing amount field %q", opts.AmountField)}
			}
		default:
			return nil, &InvalidInputError{Index: i, Reason: "row must be an object or an address string"}
		}

		to, err := model.ParseFelt(strings.TrimSpace(recipient))
		if err != nil {
			return nil, &InvalidInputError{Index: i, Reason: fmt.Sprintf("recipient: %v", err)}
		}
		if to.IsZero() {
			return nil, &InvalidInputError{Index: i, Reason: "recipient is zero"}
		}
		value, err := ToFixedPoint(amount, opts.Decimals)
		if err != nil {
			return nil, &InvalidInputError{Index: i, Reason: err.Error()}
		}
		out = append(out, model.Allocation{Recipient: to, Amount: value})
	}
	return out, nil
}
