package zone

import "fmt"

// ErrorCode is the closed set of error codes the core exposes on every
// wire operation and every local operation. No exceptions cross a zone
// boundary; everything is a value-returned code.
type ErrorCode int

const (
	// OK indicates success.
	OK ErrorCode = 0

	// ObjectNotFound indicates the target object id is unknown in its
	// claimed home zone (including "was destroyed after its last release").
	ObjectNotFound ErrorCode = iota
	// UnknownInterface indicates try_cast could not find a supported
	// interface ordinal on the target object.
	UnknownInterface
	// DuplicateObject indicates register_stub was called with an object id
	// already in use.
	DuplicateObject
	// NoRoute indicates the service could not find a service proxy,
	// direction hint, or pass-through for a destination zone.
	NoRoute
	// TransportDown indicates the transport backing a service proxy or
	// pass-through link is not operational.
	TransportDown
	// Timeout indicates a transport-imposed per-call timeout expired.
	Timeout
	// Cancelled indicates the caller cancelled a pending call.
	Cancelled
	// ProxyDeserialisationError indicates the caller-side proxy could not
	// decode a response payload.
	ProxyDeserialisationError
	// StubDeserialisationError indicates the callee-side stub could not
	// decode a request payload.
	StubDeserialisationError
	// IncompatibleSerialisation indicates the negotiated encoding tag is
	// not supported by one of the two endpoints.
	IncompatibleSerialisation
	// NotOperational indicates an operation was attempted against a
	// component (usually a cloned service proxy) whose transport never
	// reached CONNECTED or is no longer CONNECTED.
	NotOperational
)

// VendorErrorBase is the first reserved code in the vendor extension
// range; vendor-specific codes must be >= this value.
const VendorErrorBase ErrorCode = 0x8000

var errorCodeNames = map[ErrorCode]string{
	OK:                        "OK",
	ObjectNotFound:            "OBJECT_NOT_FOUND",
	UnknownInterface:          "UNKNOWN_INTERFACE",
	DuplicateObject:           "DUPLICATE_OBJECT",
	NoRoute:                   "NO_ROUTE",
	TransportDown:             "TRANSPORT_DOWN",
	Timeout:                   "TIMEOUT",
	Cancelled:                 "CANCELLED",
	ProxyDeserialisationError: "PROXY_DESERIALISATION_ERROR",
	StubDeserialisationError:  "STUB_DESERIALISATION_ERROR",
	IncompatibleSerialisation: "INCOMPATIBLE_SERIALISATION",
	NotOperational:            "NOT_OPERATIONAL",
}

func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	if c >= VendorErrorBase {
		return fmt.Sprintf("VENDOR_ERROR(%#x)", int(c))
	}
	return fmt.Sprintf("ERROR(%d)", int(c))
}

// Error is the concrete error value returned by core operations. It wraps
// an optional underlying cause without losing the closed ErrorCode.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is(err, zone.NewError(code, "")) match on code alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewError constructs an *Error with the given code and message.
func NewError(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError constructs an *Error with the given code, message and cause.
func WrapError(code ErrorCode, cause error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// CodeOf returns the ErrorCode carried by err, or OK if err is nil, or a
// vendor-range sentinel if err is some other, non-*Error error.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return OK
	}
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return VendorErrorBase
}
