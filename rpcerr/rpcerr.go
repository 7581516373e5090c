// Package rpcerr defines the error taxonomy shared by every layer of contract-rpc.
//
// Every failure a caller can observe is one of five kinds:
//
//	DecodeError      bytes do not match the expected envelope or body shape
//	ValidationError  data failed a declared field constraint
//	RemoteError      the remote handler failed; only its message crossed the wire
//	NotFoundError    no handler is subscribed under the call name
//	TransportError   the bus failed to deliver the request or the reply
//
// Decode and validation failures raised while decoding a request on the server
// never reach this taxonomy on the client as themselves: the dispatcher turns
// them into an ErrorResponse, so the caller sees a RemoteError.
package rpcerr

import (
	"fmt"
)

// Kind classifies an error for programmatic handling.
type Kind int

const (
	KindUnknown Kind = iota
	KindDecode
	KindValidation
	KindRemote
	KindNotFound
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindDecode:
		return "decode"
	case KindValidation:
		return "validation"
	case KindRemote:
		return "remote"
	case KindNotFound:
		return "not_found"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is. Each matches any error of the corresponding type.
var (
	ErrDecode     error = &DecodeError{}
	ErrValidation error = &ValidationError{}
	ErrRemote     error = &RemoteError{}
	ErrNotFound   error = &NotFoundError{}
	ErrTransport  error = &TransportError{}
)

// DecodeError reports bytes that do not conform to the expected shape.
type DecodeError struct {
	Shape  string // message shape being decoded, e.g. "Player.hasState/request"
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := "decode"
	if e.Shape != "" {
		msg += " " + e.Shape
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool {
	_, ok := target.(*DecodeError)
	return ok
}

// ValidationError names the offending field and the constraint it failed.
type ValidationError struct {
	Shape      string
	Field      string
	Constraint string
	Value      any
}

func (e *ValidationError) Error() string {
	if e.Shape == "" {
		return fmt.Sprintf("validation: field %q failed %s (got %v)", e.Field, e.Constraint, e.Value)
	}
	return fmt.Sprintf("validation %s: field %q failed %s (got %v)", e.Shape, e.Field, e.Constraint, e.Value)
}

func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}

// RemoteError is a handler failure reported by the peer in an ErrorResponse.
// Error returns the remote message verbatim; the original error type is not
// preserved across the wire.
type RemoteError struct {
	Name    string // call name
	Message string
}

func (e *RemoteError) Error() string { return e.Message }

func (e *RemoteError) Is(target error) bool {
	_, ok := target.(*RemoteError)
	return ok
}

// NotFoundError reports that no handler is subscribed under Name.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no handler registered for %q", e.Name)
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}

// TransportError reports that the bus failed to deliver or reply.
type TransportError struct {
	Name string
	Err  error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("transport %q failed", e.Name)
	}
	return fmt.Sprintf("transport %q: %v", e.Name, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool {
	_, ok := target.(*TransportError)
	return ok
}

// KindOf returns the kind of the outermost taxonomy error in err's tree.
// Joined errors are searched in order, depth first.
func KindOf(err error) Kind {
	switch err.(type) {
	case *DecodeError:
		return KindDecode
	case *ValidationError:
		return KindValidation
	case *RemoteError:
		return KindRemote
	case *NotFoundError:
		return KindNotFound
	case *TransportError:
		return KindTransport
	}
	switch x := err.(type) {
	case interface{ Unwrap() error }:
		return KindOf(x.Unwrap())
	case interface{ Unwrap() []error }:
		for _, e := range x.Unwrap() {
			if k := KindOf(e); k != KindUnknown {
				return k
			}
		}
	}
	return KindUnknown
}

// IsLocal reports whether err was produced in this process rather than
// reported by a remote handler.
func IsLocal(err error) bool {
	return err != nil && KindOf(err) != KindRemote
}
