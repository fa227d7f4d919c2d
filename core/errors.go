package core

import (
	"errors"
	"fmt"
)

// ErrMissingEvent marks a body with no event object. Nothing is written in
// that case; the edge maps it to 400.
var ErrMissingEvent = errors.New("missing event")

// StoreError wraps an event-store write failure (insert or processed-flag
// update). The edge maps it to 500.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("event store %s: %v", e.Op, e.Err) }
func (e *StoreError) Unwrap() error { return e.Err }

// ProcedureError wraps a grant/revoke procedure failure. Processing aborts at
// the failing entry; earlier entries are not rolled back and the event stays
// unprocessed for the sweeper or the upstream retry.
type ProcedureError struct {
	Proc string
	Name string
	Err  error
}

func (e *ProcedureError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Proc, e.Name, e.Err)
}
func (e *ProcedureError) Unwrap() error { return e.Err }
