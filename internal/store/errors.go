package store

import "errors"

// Op names a store operation.
type Op string

const (
	OpFetch  Op = "fetch"
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Failure kinds surfaced to callers. Match them with errors.Is.
var (
	ErrFetchFailed  = errors.New("fetch failed")
	ErrCreateFailed = errors.New("create failed")
	ErrUpdateFailed = errors.New("update failed")
	ErrDeleteFailed = errors.New("delete failed")
)

// ErrBusy is the cause of an update or delete rejected because another
// mutation of the same task is still pending. Only returned when the store
// was built WithRecordGuard.
var ErrBusy = errors.New("another change to this task is in progress")

// ErrClosed is returned by Open once the store has been closed.
var ErrClosed = errors.New("store closed")

// OpError is returned by every failed store operation.
type OpError struct {
	Op  Op
	Err error
}

func (e *OpError) Error() string {
	return e.kind().Error() + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() error { return e.Err }

// Is reports whether target is the failure kind of e.Op.
func (e *OpError) Is(target error) bool {
	return target == e.kind()
}

func (e *OpError) kind() error {
	switch e.Op {
	case OpCreate:
		return ErrCreateFailed
	case OpUpdate:
		return ErrUpdateFailed
	case OpDelete:
		return ErrDeleteFailed
	default:
		return ErrFetchFailed
	}
}
