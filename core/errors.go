package core

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrNotFound = errors.New("not found")
	ErrClosed   = errors.New("vector store is closed")
	ErrEmptyID  = errors.New("vector ID cannot be empty")

	ErrInvalidMetadata = errors.New("metadata is not valid JSON")
)

// StorageError wraps a failure reported by the underlying key-value store.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// EncodingError is returned when a record cannot be serialized.
type EncodingError struct {
	ID  string
	Err error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("failed to encode vector %s: %v", e.ID, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// DecodingError is returned when a persisted record cannot be deserialized.
type DecodingError struct {
	Key string
	Err error
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("failed to decode record at key %q: %v", e.Key, e.Err)
}

func (e *DecodingError) Unwrap() error { return e.Err }
