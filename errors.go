// Package dfu implements a sans-I/O USB DFU 1.1 / STMicroelectronics DfuSe
// 1.1a download engine: a pure state machine that a host adapter drives by
// performing USB control transfers, sleeps, and bus resets on its behalf.
//
// The engine never performs I/O. Callers hand it a Config built from a
// FunctionalDescriptor and a Protocol, call Engine.Download, and execute
// whatever Command it returns; the reply bytes (if any) are fed back in to
// get the next Command. See pipeline.go for the full state machine.
package dfu

import (
	"errors"
	"fmt"
)

// ErrorCode classifies the condition a *Error reports, one per taxonomy
// entry in spec.md §7.
type ErrorCode string

const (
	ErrCodeDataTooShort            ErrorCode = "data too short"
	ErrCodeInvalidInterfaceString  ErrorCode = "invalid interface string"
	ErrCodeInvalidAddress          ErrorCode = "invalid address"
	ErrCodeMemoryLayout            ErrorCode = "invalid memory layout"
	ErrCodeUnknownProtocol         ErrorCode = "unknown dfu protocol version"
	ErrCodeResponseTooShort        ErrorCode = "response too short"
	ErrCodeInvalidState            ErrorCode = "invalid device state"
	ErrCodeStatusError             ErrorCode = "device reported error status"
	ErrCodeOutOfCapabilities       ErrorCode = "length exceeds engine capabilities"
	ErrCodeNoSpaceLeft             ErrorCode = "no space left on device"
	ErrCodeBufferTooBig            ErrorCode = "buffer too big"
	ErrCodeMaximumTransferExceeded ErrorCode = "maximum transfer size exceeded"
	ErrCodeEraseLimitReached       ErrorCode = "erase limit reached"
	ErrCodeMaximumChunksExceeded   ErrorCode = "maximum chunk count exceeded"
	ErrCodeTransport               ErrorCode = "transport error"
	ErrCodeInvalidPageFormat       ErrorCode = "invalid memory layout page format"
	ErrCodeParsePageCount          ErrorCode = "invalid memory layout page count"
	ErrCodeParsePageSize           ErrorCode = "invalid memory layout page size"
	ErrCodeInvalidPrefix           ErrorCode = "invalid memory layout unit prefix"
	ErrCodeInvalidTransferSize     ErrorCode = "invalid transfer size"
)

// Error is the structured error type returned by this package. Op names the
// operation that failed (e.g. "ParseFunctionalDescriptor", "WaitState",
// "DownloadChunk"); Code classifies the failure; Got/Want carry the values
// behind a {got,expected} style mismatch (spec.md §7), when applicable;
// Inner, when non-nil, is the wrapped cause — typically a transport error
// propagated verbatim from the adapter, per spec.md §7's propagation policy.
type Error struct {
	Op    string
	Code  ErrorCode
	Got   int
	Want  int
	Inner error
}

func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Got != 0 || e.Want != 0 {
		msg = fmt.Sprintf("%s (got=%d, want=%d)", msg, e.Got, e.Want)
	}
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if e.Inner != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Inner)
	}
	return msg
}

// Unwrap returns the wrapped cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is reports whether target is a *Error with the same Code, so that
// errors.Is(err, dfu.ErrNoSpaceLeft) works against the package's sentinels.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok || te.Code == "" {
		return false
	}
	return e.Code == te.Code
}

func newError(op string, code ErrorCode) *Error {
	return &Error{Op: op, Code: code}
}

func newErrorGotWant(op string, code ErrorCode, got, want int) *Error {
	return &Error{Op: op, Code: code, Got: got, Want: want}
}

// wrapTransport wraps an adapter-returned error verbatim, per spec.md §7's
// "Transport: propagated verbatim from the adapter" policy; op records
// which engine operation was issuing the transfer when it failed.
func wrapTransport(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Code: ErrCodeTransport, Inner: err}
}

// NewError builds a *Error with no Got/Want payload, for callers outside
// this package (e.g. the driver shells) that need to raise one of the
// ErrorCode conditions themselves.
func NewError(op string, code ErrorCode) *Error {
	return newError(op, code)
}

// NewErrorGotWant builds a *Error carrying a {got,expected} pair.
func NewErrorGotWant(op string, code ErrorCode, got, want int) *Error {
	return newErrorGotWant(op, code, got, want)
}

// WrapTransport wraps an adapter-returned error verbatim, for use by driver
// shells and other out-of-package callers; see wrapTransport.
func WrapTransport(op string, err error) error {
	return wrapTransport(op, err)
}

// Sentinel values usable with errors.Is(err, dfu.ErrNoSpaceLeft) and
// friends. Only the Code field is compared (see (*Error).Is); these are
// not meant to be returned directly, only matched against.
var (
	ErrDataTooShort            error = &Error{Code: ErrCodeDataTooShort}
	ErrInvalidInterfaceString  error = &Error{Code: ErrCodeInvalidInterfaceString}
	ErrInvalidAddress          error = &Error{Code: ErrCodeInvalidAddress}
	ErrMemoryLayout            error = &Error{Code: ErrCodeMemoryLayout}
	ErrUnknownProtocol         error = &Error{Code: ErrCodeUnknownProtocol}
	ErrResponseTooShort        error = &Error{Code: ErrCodeResponseTooShort}
	ErrInvalidState            error = &Error{Code: ErrCodeInvalidState}
	ErrStatusError             error = &Error{Code: ErrCodeStatusError}
	ErrOutOfCapabilities       error = &Error{Code: ErrCodeOutOfCapabilities}
	ErrNoSpaceLeft             error = &Error{Code: ErrCodeNoSpaceLeft}
	ErrBufferTooBig            error = &Error{Code: ErrCodeBufferTooBig}
	ErrMaximumTransferExceeded error = &Error{Code: ErrCodeMaximumTransferExceeded}
	ErrEraseLimitReached       error = &Error{Code: ErrCodeEraseLimitReached}
	ErrMaximumChunksExceeded   error = &Error{Code: ErrCodeMaximumChunksExceeded}
)

// IsCode reports whether err is (or wraps) a *Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var derr *Error
	if errors.As(err, &derr) {
		return derr.Code == code
	}
	return false
}
