// Package apperrors provides chained error values that carry an HTTP status code.
// Errors are declared once as package-level templates and specialised at the call
// site with New, Msg, MsgErr or Err. errors.Is matches every template in the chain.
package apperrors

// Error is the application error interface. Every method that derives an error
// returns a fresh value; templates are never mutated.
type Error interface {
	error
	Unwrap() error

	New(msg string) Error                  // new error with msg, current error as base
	Msg(msg string) Error                  // new message, current error wrapped
	MsgErr(msg string, err ...error) Error // new message, current error and errs wrapped
	Err(err ...error) Error                // same message, errs attached
	SetExpandError(bool) Error             // ErrorAll includes wrapped errors when set
	SetStatusCode(int) Error               // HTTP status used when the error reaches a handler
	StatusCode() int
	ErrorAll() string
	UnwrapAll() []error
}
