// Package apperrors provides chainable errors for the client library. An error can be
// derived from a category root, carry a machine readable classification code, and wrap
// any number of causes while still matching its ancestors through errors.Is.
package apperrors

// Error defines the interface for library errors. It extends the standard error
// interface with methods for wrapping, message manipulation and classification.
// All methods return Error to support method chaining.
type Error interface {
	error
	Unwrap() error // support for errors.Is / errors.As

	New(msg string) Error                  // creates a new error using current as template
	Msg(msg string) Error                  // creates a new error with message and wraps original
	MsgErr(msg string, err ...error) Error // creates error with message and wraps extra errors
	Err(err ...error) Error                // attaches additional errors to current error
	SetExpandError(bool) Error             // controls whether ErrorAll expands wrapped errors
	SetCode(string) Error                  // sets the classification code
	Code() string                          // returns the classification code, inherited from ancestors
	Prefix(string) Error                   // adds a prefix to the error message
	Suffix(string) Error                   // adds a suffix to the error message
	ErrorAll() string                      // returns full message including wrapped errors
	UnwrapAll() []error                    // returns all wrapped errors
}
