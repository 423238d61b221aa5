package airdrop

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airdropScope/internal/model"
)

func feltStrings(felts []model.Felt) []string {
	out := make([]string, 0, len(felts))
	for _, f := range felts {
		out = append(out, f.String())
	}
	return out
}

func TestCallTemplateBatchCreate(t *testing.T) {
	tmpl, err := NewCallTemplate("0xabc", "batch_create", []string{"$recipients", "0", "1", "$amounts", "50", "1"})
	require.NoError(t, err)
	assert.False(t, tmpl.SingleRecipient())

	big, _ := uint256.FromHex("0x1" + "00000000000000000000000000000005")
	batch := model.Batch{Index: 3, Allocations: []model.Allocation{
		{Recipient: model.MustParseFelt("0x11"), Amount: uint256.NewInt(7)},
		{Recipient: model.MustParseFelt("0x22"), Amount: big},
	}}

	call, err := tmpl.Build(batch)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", call.Target.String())
	assert.Equal(t, "batch_create", call.Method)
	assert.Equal(t, []string{
		"0x2", "0x11", "0x22",
		"0x0", "0x1",
		"0x2", "0x7", "0x0", "0x5", "0x1",
		"0x32", "0x1",
	}, feltStrings(call.Calldata))
}

func TestCallTemplateTransfer(t *testing.T) {
	tmpl, err := NewCallTemplate("0xabc", "transfer", []string{"$recipient", "$amount"})
	require.NoError(t, err)
	assert.True(t, tmpl.SingleRecipient())

	one := model.Batch{Allocations: []model.Allocation{{Recipient: model.MustParseFelt("0x9"), Amount: uint256.NewInt(25)}}}
	call, err := tmpl.Build(one)
	require.NoError(t, err)
	assert.Equal(t, []string{"0x9", "0x19", "0x0"}, feltStrings(call.Calldata))

	_, err = tmpl.Build(model.Batch{Allocations: allocations(2)})
	assert.Error(t, err)
}

func TestNewCallTemplateRejects(t *testing.T) {
	_, err := NewCallTemplate("", "batch_create", nil)
	assert.Error(t, err)
	_, err = NewCallTemplate("0x1", " ", nil)
	assert.Error(t, err)
	_, err = NewCallTemplate("0x1", "m", []string{"$unknown"})
	assert.Error(t, err)
	_, err = NewCallTemplate("0x1", "m", []string{"not-a-felt"})
	assert.Error(t, err)
}
