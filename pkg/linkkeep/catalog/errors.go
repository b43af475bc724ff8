package catalog

import "fmt"

// PersistenceError wraps an engine-level transaction failure. The failed
// operation left no partial state behind; retrying is up to the user.
// Validation rejections (duplicate category name, unknown category, protected
// category) are boolean results, never errors.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("catalog: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}
