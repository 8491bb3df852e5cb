package queue

import (
	"errors"
	"fmt"
)

// ErrorClassifier allows errors to declare their classification. Adapters use
// the kind to choose the user-facing answer and log event type.
type ErrorClassifier interface {
	ErrorKind() string
}

// KindOf returns the classification of err, or "internal" when no error in
// the chain declares one.
func KindOf(err error) string {
	var classifier ErrorClassifier
	if errors.As(err, &classifier) {
		return classifier.ErrorKind()
	}
	return "internal"
}

// NotFoundError reports that id is absent from collection.
type NotFoundError struct {
	ID         string
	Collection Collection
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("item %s not found in %s", e.ID, e.Collection)
}

func (e *NotFoundError) ErrorKind() string { return "not_found" }

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// InvalidTransitionError reports a state change the lifecycle does not allow.
type InvalidTransitionError struct {
	ID   string
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("item %s: invalid transition %s -> %s", e.ID, e.From, e.To)
}

func (e *InvalidTransitionError) ErrorKind() string { return "invalid_transition" }

// DuplicateIDError reports that Create found the id already stored.
type DuplicateIDError struct {
	ID         string
	Collection Collection
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("item %s already exists in %s", e.ID, e.Collection)
}

func (e *DuplicateIDError) ErrorKind() string { return "duplicate" }

// WriteError wraps a storage failure while persisting a record.
type WriteError struct {
	ID  string
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("queue %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("queue %s %s: %v", e.Op, e.ID, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

func (e *WriteError) ErrorKind() string { return "write" }

// ReadError wraps a storage failure while enumerating or loading records.
type ReadError struct {
	Collection Collection
	Err        error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("queue read %s: %v", e.Collection, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

func (e *ReadError) ErrorKind() string { return "read" }
