package injury

import "fmt"

// Operation names reported in PersistenceError.Op and in logs.
const (
	OpSave   = "save"
	OpGet    = "get"
	OpAdd    = "add"
	OpUpdate = "update"
	OpDelete = "delete"
	OpClear  = "clear"
)

// PersistenceError is the single error kind returned by Store. Err is the
// backend failure or the JSON encode/decode failure that caused it.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("injury store %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
