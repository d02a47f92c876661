package ledger

import "fmt"

// StorageError wraps a persistence-layer fault: backing store unavailable,
// constraint violated, row unreadable. The ledger never retries internally;
// callers surface it upstream and decide their own retry policy.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
