package airdrop

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"airdropScope/internal/model"
)

// Placeholders understood by CallTemplate.
const (
	ArgRecipients = "$recipients"
	ArgAmounts    = "$amounts"
	ArgRecipient  = "$recipient"
	ArgAmount     = "$amount"
)

type argKind int

const (
	argLiteral argKind = iota
	argRecipients
	argAmounts
	argRecipient
	argAmount
)

type templateArg struct {
	kind  argKind
	value model.Felt
}

// CallBuilder turns a batch into the call that submits it.
type CallBuilder interface {
	Build(batch model.Batch) (model.Call, error)
}

// CallTemplate lays out calldata from an argument list such as
// ["$recipients", "0", "1", "$amounts", "50", "1"]. Arrays are length
// prefixed and amounts are u256 values split into low and high 128-bit
// felts.
type CallTemplate struct {
	target model.Felt
	method string
	args   []templateArg
	single bool
}

// NewCallTemplate validates the argument list up front so a bad template
// fails before the first unit is planned.
func NewCallTemplate(target, method string, args []string) (*CallTemplate, error) {
	addr, err := model.ParseFelt(target)
	if err != nil {
		return nil, fmt.Errorf("invalid target: %w", err)
	}
	if addr.IsZero() {
		return nil, fmt.Errorf("target is required")
	}
	method = strings.TrimSpace(method)
	if method == "" {
		return nil, fmt.Errorf("method is required")
	}

	t := &CallTemplate{target: addr, method: method}
	for i, raw := range args {
		arg := strings.TrimSpace(raw)
		switch arg {
		case ArgRecipients:
			t.args = append(t.args, templateArg{kind: argRecipients})
		case ArgAmounts:
			t.args = append(t.args, templateArg{kind: argAmounts})
		case ArgRecipient:
			t.args = append(t.args, templateArg{kind: argRecipient})
			t.single = true
		case ArgAmount:
			t.args = append(t.args, templateArg{kind: argAmount})
			t.single = true
		default:
			if strings.HasPrefix(arg, "$") {
				return nil, fmt.Errorf("arg %d: unknown placeholder %s", i, arg)
			}
			value, err := model.ParseFelt(arg)
			if err != nil {
				return nil, fmt.Errorf("arg %d: %w", i, err)
			}
			t.args = append(t.args, templateArg{kind: argLiteral, value: value})
		}
	}
	return t, nil
}

// SingleRecipient reports whether the template addresses one allocation
// per call, which forces a batch size of 1.
func (t *CallTemplate) SingleRecipient() bool {
	return t.single
}

func (t *CallTemplate) Build(batch model.Batch) (model.Call, error) {
	if len(batch.Allocations) == 0 {
		return model.Call{}, fmt.Errorf("batch %d is empty", batch.Index)
	}
	if t.single && len(batch.Allocations) != 1 {
		return model.Call{}, fmt.Errorf("batch %d has %d allocations, template takes one", batch.Index, len(batch.Allocations))
	}

	n := uint64(len(batch.Allocations))
	calldata := make([]model.Felt, 0, len(t.args)+3*len(batch.Allocations))
	for _, arg := range t.args {
		switch arg.kind {
		case argLiteral:
			calldata = append(calldata, arg.value)
		case argRecipients:
			calldata = append(calldata, model.FeltFromUint64(n))
			for _, a := range batch.Allocations {
				calldata = append(calldata, a.Recipient)
			}
		case argAmounts:
			calldata = append(calldata, model.FeltFromUint64(n))
			for _, a := range batch.Allocations {
				calldata = appendU256(calldata, a.Amount)
			}
		case argRecipient:
			calldata = append(calldata, batch.Allocations[0].Recipient)
		case argAmount:
			calldata = appendU256(calldata, batch.Allocations[0].Amount)
		}
	}
	return model.Call{Target: t.target, Method: t.method, Calldata: calldata}, nil
}

// appendU256 writes v as (low, high).
func appendU256(calldata []model.Felt, v *uint256.Int) []model.Felt {
	if v == nil {
		v = new(uint256.Int)
	}
	low := uint256.Int{v[0], v[1], 0, 0}
	high := uint256.Int{v[2], v[3], 0, 0}
	return append(calldata, model.FeltFromUint256(&low), model.FeltFromUint256(&high))
}
