package transaction

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("transaction not found")

// ValidationError reports caller input the ledger refuses to write.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid transaction: " + e.Reason
	}

	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// PersistenceError wraps a storage failure at one step of a mutation.
// The whole unit of work has been rolled back when it is returned.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// persistence classifies err for the coordinator: domain errors pass
// through untouched, everything else becomes a PersistenceError.
func persistence(op string, err error) error {
	if errors.Is(err, ErrNotFound) || IsValidation(err) {
		return err
	}

	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}

	return &PersistenceError{Op: op, Err: err}
}
