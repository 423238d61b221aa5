package model

import (
	"encoding/json"
)

// EventSource is a ledger address scanned over an explicit block range.
type EventSource struct {
	Name       string `json:"name"`
	Address    Felt   `json:"address"`
	StartBlock uint64 `json:"start_block"`
	EndBlock   uint64 `json:"end_block"`
}

// DataMatch requires DataWords[Index] == Value before a key is extracted.
type DataMatch struct {
	Index int  `json:"index"`
	Value Felt `json:"value"`
}

// EventFilter selects events by key position and says which data word
// carries the dedup key. Keys[i] lists the accepted values at position i.
type EventFilter struct {
	Name         string     `json:"name"`
	Keys         [][]Felt   `json:"keys"`
	ExtractIndex int        `json:"extract_index"`
	Match        *DataMatch `json:"match,omitempty"`
}

// RawEvent is one emitted event as returned by the ledger.
type RawEvent struct {
	FromAddress Felt   `json:"from_address"`
	Topics      []Felt `json:"keys"`
	DataWords   []Felt `json:"data"`
	BlockNumber uint64 `json:"block_number"`
	BlockHash   string `json:"block_hash,omitempty"`
	TxHash      string `json:"transaction_hash"`
}

// MarshalJSON ensures RawEvent is encoded with stable field names.
func (e RawEvent) MarshalJSON() ([]byte, error) {
	type Alias RawEvent
	return json.Marshal(Alias(e))
}

// UnmarshalJSON decodes a RawEvent from JSON.
func (e *RawEvent) UnmarshalJSON(data []byte) error {
	type Alias RawEvent
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*e = RawEvent(a)
	return nil
}

// EventPage is one fetch worth of events. An empty ContinuationToken ends the range.
type EventPage struct {
	Events            []RawEvent `json:"events"`
	ContinuationToken string     `json:"continuation_token,omitempty"`
}

// HasMore reports whether another page follows.
func (p EventPage) HasMore() bool {
	return p.ContinuationToken != ""
}

// PageRequest is one call to the paginated event API.
type PageRequest struct {
	Address           Felt
	Keys              [][]Felt
	FromBlock         uint64
	ToBlock           uint64
	PageSize          int
	ContinuationToken string
}
