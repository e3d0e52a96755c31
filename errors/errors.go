/*
Package errors provides the error package for the ingestion client. No error should be returned from a public call
that doesn't come from this package. This borrows heavily from the Upspin errors paper written by Rob Pike.
See: https://commandcenter.blogspot.com/2017/12/error-handling-in-upspin.html

Every error carries an Op (which entry point or stage was running) and a Kind (what class of failure happened).
The Kind is what callers should switch on: a KUploadFailed means data never reached storage, a KPublishFailed means
the data is staged in storage but no ingestion message was queued for it.

Usage is simply to pass an Op, a Kind, and either a standard error to be wrapped or string that will become
a string error.
*/
package errors

import (
	"errors"
	"fmt"
	"log"
	"runtime"
	"strings"
)

// Separator is the string used to separate nested errors. By
// default, to make errors easier on the eye, nested errors are
// indented on a new line.
var Separator = ":\n\t"

// Op field denotes the operation being performed.
type Op uint16

const (
	OpUnknown         Op = 0 // OpUnknown indicates that the operation that caused the problem is unknown.
	OpResourceFetch   Op = 1 // OpResourceFetch indicates ingestion resources were being retrieved from the resource authority.
	OpFileIngest      Op = 2 // OpFileIngest indicates local files or streams were being staged and queued.
	OpBlobIngest      Op = 3 // OpBlobIngest indicates already staged blobs were being queued.
	OpDataFrameIngest Op = 4 // OpDataFrameIngest indicates tabular data was being serialized, staged and queued.
)

// String implements fmt.Stringer.
func (o Op) String() string {
	switch o {
	case OpUnknown:
		return "OpUnknown"
	case OpResourceFetch:
		return "OpResourceFetch"
	case OpFileIngest:
		return "OpFileIngest"
	case OpBlobIngest:
		return "OpBlobIngest"
	case OpDataFrameIngest:
		return "OpDataFrameIngest"
	}
	return fmt.Sprintf("Op(%d)", uint16(o))
}

// Kind field classifies the error as one of a set of standard conditions.
type Kind uint16

const (
	KOther               Kind = 0 // Other indicates the error kind was not defined.
	KInternal            Kind = 1 // Internal error or inconsistency in the client.
	KInvalidInput        Kind = 2 // The caller supplied malformed properties or a source that could not be read.
	KResourceUnavailable Kind = 3 // Ingestion resources could not be obtained from the resource authority.
	KUploadFailed        Kind = 4 // Writing the data to blob storage failed.
	KPublishFailed       Kind = 5 // Writing the ingestion message to the queue failed.
	KTimeout             Kind = 6 // The request was canceled or its deadline passed.
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KOther:
		return "KOther"
	case KInternal:
		return "KInternal"
	case KInvalidInput:
		return "KInvalidInput"
	case KResourceUnavailable:
		return "KResourceUnavailable"
	case KUploadFailed:
		return "KUploadFailed"
	case KPublishFailed:
		return "KPublishFailed"
	case KTimeout:
		return "KTimeout"
	}
	return fmt.Sprintf("Kind(%d)", uint16(k))
}

// Error is a core error for the ingestion client.
type Error struct {
	// Op is the operations that the client was trying to perform.
	Op Op
	// Kind is the error code we identify the error as.
	Kind Kind
	// Err is the wrapped internal error message. This may be of any error
	// type and may also wrap errors.
	Err error

	permanent bool
	inner     *Error
}

func (e *Error) isZero() bool {
	return e == nil || (e.Op == OpUnknown && e.Kind == KOther && e.Err == nil)
}

// Unwrap implements "interface {Unwrap() error}" as defined internaly by the go stdlib errors package.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	if e.inner == nil {
		return e.Err
	}
	return e.inner
}

// SetNoRetry marks the error as permanent. Retry() will report false for it.
func (e *Error) SetNoRetry() *Error {
	e.permanent = true
	return e
}

// pad appends str to the buffer if the buffer already has some data.
func pad(b *strings.Builder, str string) {
	if b.Len() == 0 {
		return
	}
	b.WriteString(str)
}

func (e *Error) Error() string {
	if e.isZero() {
		return "no error"
	}
	b := new(strings.Builder)
	if e.Op != OpUnknown {
		pad(b, ": ")
		b.WriteString(fmt.Sprintf("Op(%s)", e.Op.String()))
	}
	if e.Kind != KOther {
		pad(b, ": ")
		b.WriteString(fmt.Sprintf("Kind(%s)", e.Kind.String()))
	}

	if e.Err != nil {
		pad(b, ": ")
		b.WriteString(e.Err.Error())
	}
	var inner = e.inner
	for {
		if inner == nil {
			break
		}
		if inner.Err != nil {
			pad(b, Separator)
			b.WriteString(inner.Err.Error())
		}
		inner = inner.inner
	}

	if b.Len() == 0 {
		return "no error"
	}
	return b.String()
}

// E constructs an Error. You may pass in an Op, Kind and error. If err is an *Error, its Err is used and
// its Op and Kind are replaced. If you want to keep the *Error as is and nest it, use W().
// If you pass a nil error, it panics.
func E(o Op, k Kind, err error) *Error {
	if err == nil {
		panic("cannot pass a nil error")
	}
	return e(o, k, err)
}

// ES constructs an Error. You may pass in an Op, Kind, string and args to the string (like fmt.Sprintf).
// If the result of strings.TrimSpace(s+args) == "", it panics.
func ES(o Op, k Kind, s string, args ...interface{}) *Error {
	str := fmt.Sprintf(s, args...)
	if strings.TrimSpace(str) == "" {
		panic("errors.ES() cannot have an empty string error")
	}
	return e(o, k, str)
}

func e(args ...interface{}) *Error {
	if len(args) == 0 {
		panic("call to errors.E with no arguments")
	}
	e := &Error{}

	for _, arg := range args {
		switch arg := arg.(type) {
		case Op:
			e.Op = arg
		case string:
			e.Err = errors.New(arg)
		case Kind:
			e.Kind = arg
		case *Error:
			cp := *arg
			e.Err = cp.Err
			e.permanent = cp.permanent
		case error:
			e.Err = arg
		default:
			_, file, line, _ := runtime.Caller(1)
			log.Printf("errors.E: bad call from %s:%d: %v", file, line, args)
			e.Err = fmt.Errorf("unknown type %T, value %v in error call", arg, arg)
		}
	}

	return e
}

// W wraps error outer around inner. Both must be of type *Error or this will panic.
func W(inner error, outer error) *Error {
	o, ok := outer.(*Error)
	if !ok {
		panic("W() got an outer error that was not of type *Error")
	}
	i, ok := inner.(*Error)
	if !ok {
		panic("W() got an inner error that was not of type *Error")
	}

	o.inner = i
	return o
}

// KindOf returns the Kind of the first *Error found in err's chain. It returns KOther if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KOther
}

// Is reports whether err or anything it wraps is an *Error of Kind k. CombinedError values report true
// if any of their errors do.
func Is(err error, k Kind) bool {
	if err == nil {
		return false
	}
	if c, ok := err.(*CombinedError); ok {
		for _, inner := range c.Errors {
			if Is(inner, k) {
				return true
			}
		}
		return false
	}
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	for cur := e; cur != nil; cur = cur.inner {
		if cur.Kind == k {
			return true
		}
	}
	return false
}

// Retry determines if the error is transient and the action can be retried or not.
// Some errors that can be retried, such as a timeout, may never succeed, so avoid infinite retries.
func Retry(err error) bool {
	if c, ok := err.(*CombinedError); ok {
		for _, inner := range c.Errors {
			if Retry(inner) {
				return true
			}
		}
		return false
	}

	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	for cur := e; cur != nil; cur = cur.inner {
		if cur.permanent {
			return false
		}
		switch cur.Kind {
		case KResourceUnavailable, KUploadFailed, KPublishFailed, KTimeout:
		default:
			return false
		}
	}
	return true
}

// CombinedError holds several independent errors, such as the per item failures of a batch.
type CombinedError struct {
	Errors []error
}

// CombineErrors returns nil for no errors, the error itself for a single error and a *CombinedError otherwise.
// nil entries are skipped.
func CombineErrors(errs ...error) error {
	var kept []error
	for _, err := range errs {
		if err != nil {
			kept = append(kept, err)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return &CombinedError{Errors: kept}
}

func (c *CombinedError) Error() string {
	b := new(strings.Builder)
	fmt.Fprintf(b, "%d errors occurred:", len(c.Errors))
	for _, err := range c.Errors {
		b.WriteString("\n\t* ")
		b.WriteString(err.Error())
	}
	return b.String()
}

// Unwrap implements "interface {Unwrap() []error}" so errors.Is and errors.As search every combined error.
func (c *CombinedError) Unwrap() []error {
	return c.Errors
}
