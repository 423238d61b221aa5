package storage

import "fmt"

// CorruptStateError means the backing data is not a valid key collection.
// The caller decides whether to start empty or abort.
type CorruptStateError struct {
	Path string
	Err  error
}

func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("corrupt key state at %s: %v", e.Path, e.Err)
}

func (e *CorruptStateError) Unwrap() error {
	return e.Err
}
