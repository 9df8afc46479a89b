package profile

import "fmt"

// InvalidArgumentError reports a malformed allocate/addTimeSlot call
// (finish <= start, negative numPE, ...), spec.md §7 InvalidArgument.
type InvalidArgumentError struct {
	msg string
}

func (e *InvalidArgumentError) Error() string { return e.msg }

func errInvalidArg(format string, args ...any) error {
	return &InvalidArgumentError{msg: fmt.Sprintf(format, args...)}
}
