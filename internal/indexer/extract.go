package indexer

import "airdropScope/internal/model"

// ExtractKey applies the filter's extraction rule and returns the canonical
// dedup key. ok is false when the event does not match the filter or is too
// short to carry the key.
func ExtractKey(event model.RawEvent, filter model.EventFilter) (string, bool) {
	if !matchesKeys(event, filter.Keys) {
		return "", false
	}
	if m := filter.Match; m != nil {
		if m.Index < 0 || m.Index >= len(event.DataWords) || !event.DataWords[m.Index].Equal(m.Value) {
			return "", false
		}
	}
	if filter.ExtractIndex < 0 || filter.ExtractIndex >= len(event.DataWords) {
		return "", false
	}
	return event.DataWords[filter.ExtractIndex].String(), true
}

// matchesKeys checks every constrained key position. An empty position
// accepts any value.
func matchesKeys(event model.RawEvent, keys [][]model.Felt) bool {
	for i, accepted := range keys {
		if len(accepted) == 0 {
			continue
		}
		if i >= len(event.Topics) {
			return false
		}
		found := false
		for _, want := range accepted {
			if event.Topics[i].Equal(want) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
