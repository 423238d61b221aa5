package indexer

import "fmt"

// BlockRange is an inclusive window of blocks queried as one event filter.
type BlockRange struct {
	From uint64
	To   uint64
}

// SplitRange cuts [from, to] into consecutive windows of at most window
// blocks. The last window may be shorter.
func SplitRange(from, to, window uint64) ([]BlockRange, error) {
	if window == 0 {
		return nil, fmt.Errorf("block window must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("end block %d is before start block %d", to, from)
	}

	windows := make([]BlockRange, 0, (to-from)/window+1)
	for start := from; ; start += window {
		if to-start < window {
			windows = append(windows, BlockRange{From: start, To: to})
			return windows, nil
		}
		windows = append(windows, BlockRange{From: start, To: start + window - 1})
	}
}
