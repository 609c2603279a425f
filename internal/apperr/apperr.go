// Package apperr defines the agent's error taxonomy.
//
// Every failure that can end up in the persistent ledger carries a Kind and a stable
// numeric code. Codes 5000-5006 keep the values historically written by the agent so
// records produced by older versions stay comparable.
package apperr

import (
	"errors"
	"fmt"
)

// Kind identifies a class of failure.
type Kind string

const (
	KindScheduler            Kind = "SchedulerError"
	KindJobDispatch          Kind = "JobDispatchError"
	KindScheduleRegistration Kind = "ScheduleRegistrationError"
	KindRemoteCall           Kind = "RemoteCallError"
	KindStorageMutex         Kind = "StorageMutexError"
	KindStorage              Kind = "StorageError"
	KindDeserialization      Kind = "DeserializationError"
	KindIdentityDecode       Kind = "IdentityDecodeError"
	KindSymbolResolution     Kind = "SymbolResolutionError"
	KindTransferRejected     Kind = "TransferRejectedError"
	KindInvalidSchedule      Kind = "InvalidScheduleError"
	KindTaskList             Kind = "TaskListError"
	KindUnknown              Kind = "UnknownError"
)

var codes = map[Kind]int{
	KindScheduler:            5000,
	KindJobDispatch:          5001,
	KindScheduleRegistration: 5002,
	KindRemoteCall:           5003,
	KindStorageMutex:         5004,
	KindStorage:              5005,
	KindDeserialization:      5006,
	KindIdentityDecode:       5007,
	KindSymbolResolution:     5008,
	KindTransferRejected:     5009,
	KindInvalidSchedule:      5010,
	KindTaskList:             5011,
}

// Code returns the numeric code of the kind, or 0 for unknown kinds.
func (k Kind) Code() int {
	return codes[k]
}

// Error is a classified failure.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Code returns the numeric code of the error kind.
func (e *Error) Code() int {
	return e.Kind.Code()
}

// Is matches any *Error of the same kind, so errors.Is(err, apperr.ErrStorage) works
// on wrapped chains.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrScheduler            = &Error{Kind: KindScheduler}
	ErrJobDispatch          = &Error{Kind: KindJobDispatch}
	ErrScheduleRegistration = &Error{Kind: KindScheduleRegistration}
	ErrRemoteCall           = &Error{Kind: KindRemoteCall}
	ErrStorageMutex         = &Error{Kind: KindStorageMutex}
	ErrStorage              = &Error{Kind: KindStorage}
	ErrDeserialization      = &Error{Kind: KindDeserialization}
	ErrIdentityDecode       = &Error{Kind: KindIdentityDecode}
	ErrSymbolResolution     = &Error{Kind: KindSymbolResolution}
	ErrTransferRejected     = &Error{Kind: KindTransferRejected}
	ErrInvalidSchedule      = &Error{Kind: KindInvalidSchedule}
	ErrTaskList             = &Error{Kind: KindTaskList}
)

// New wraps err with the given kind and message.
func New(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Wrap wraps err with the given kind.
func Wrap(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the kind of the outermost classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf returns the numeric code of err, or 0 when err is not classified.
func CodeOf(err error) int {
	return KindOf(err).Code()
}
