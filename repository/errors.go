package repository

import "fmt"

const (
	OperationPutItem = "PutItem"
	OperationQuery   = "Query"
)

// StorageError is the only error kind adapters hand back to callers.
// Backend specific errors stay reachable through Unwrap.
type StorageError struct {
	Message   string
	Operation string
	Err       error
}

func (e *StorageError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("[%s] %s", e.Operation, e.Message)
}

func (e *StorageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func NewStorageError(operation string, message string, err error) *StorageError {
	return &StorageError{
		Message:   message,
		Operation: operation,
		Err:       err,
	}
}
