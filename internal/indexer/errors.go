package indexer

import "fmt"

// Position is where a pager resumes: the block window it was in and the
// continuation token for the next page in that window.
type Position struct {
	FromBlock uint64 `json:"from_block"`
	Token     string `json:"token,omitempty"`
}

// IngestionAbortedError is returned when a page could not be fetched
// within the retry budget or failed fatally. Resume points at the page
// that failed, so re-running from it loses nothing.
type IngestionAbortedError struct {
	Source   string
	Filter   string
	Resume   Position
	Pages    int
	Attempts int
	Err      error
}

func (e *IngestionAbortedError) Error() string {
	return fmt.Sprintf("ingestion of %s/%s aborted after %d pages (resume block %d token %q): %v",
		e.Source, e.Filter, e.Pages, e.Resume.FromBlock, e.Resume.Token, e.Err)
}

func (e *IngestionAbortedError) Unwrap() error {
	return e.Err
}
