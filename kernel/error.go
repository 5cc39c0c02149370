// Package kernel contains the result-code type shared by every kernel
// subsystem and a handful of raw memory helpers.
package kernel

// Error describes a kernel error. All kernel errors must be defined as global
// variables that are pointers to the Error structure. Failure paths only hand
// out one of these pointers, so callers compare errors by identity and no
// memory is ever allocated while reporting a failure.
type Error struct {
	// The module where the error occurred.
	Module string

	// The error message
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// String returns the error message tagged with the module that raised it.
func (e *Error) String() string {
	return "[" + e.Module + "] " + e.Message
}
