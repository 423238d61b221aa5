package airdrop

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaultLoad = LoadOptions{RecipientField: "Address", AmountField: "HSTK Allocation", Decimals: 18}

func TestLoadAllocationsObjects(t *testing.T) {
	input := `[
		{"Address": "0x0123", "HSTK Allocation": 123.5},
		{"Address": "0x456", "HSTK Allocation": "1.123456789012345678999"},
		{"Address": "0x789", "HSTK Allocation": 12345678901234567890123}
	]`
	got, err := LoadAllocations([]byte(input), defaultLoad)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "0x123", got[0].Recipient.String())
	assert.Equal(t, "123500000000000000000", got[0].Amount.ToBig().String())
	assert.Equal(t, "1123456789012345678", got[1].Amount.ToBig().String())
	assert.Equal(t, "12345678901234567890123000000000000000000", got[2].Amount.ToBig().String())
}

func TestLoadAllocationsPlainAddresses(t *testing.T) {
	opts := defaultLoad
	opts.FixedAmount = "25000"

	got, err := LoadAllocations([]byte(`["0x1", "0x2"]`), opts)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "25000000000000000000000", got[1].Amount.ToBig().String())

	_, err = LoadAllocations([]byte(`["0x1"]`), defaultLoad)
	assert.Error(t, err)
}

func TestLoadAllocationsRejects(t *testing.T) {
	cases := map[string]string{
		"not json":         `[{`,
		"not array":        `{"Address": "0x1"}`,
		"number row":       `[1]`,
		"missing address":  `[{"HSTK Allocation": 1}]`,
		"missing amount":   `[{"Address": "0x1"}]`,
		"negative amount":  `[{"Address": "0x1", "HSTK Allocation": -3}]`,
		"exponent amount":  `[{"Address": "0x1", "HSTK Allocation": 1e3}]`,
		"bad address":      `[{"Address": "zz", "HSTK Allocation": 1}]`,
		"zero address":     `[{"Address": "0x0", "HSTK Allocation": 1}]`,
		"non-numeric text": `[{"Address": "0x1", "HSTK Allocation": "lots"}]`,
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadAllocations([]byte(input), defaultLoad)
			var invalid *InvalidInputError
			assert.True(t, errors.As(err, &invalid), "got %v", err)
		})
	}
}
