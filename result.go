package sensorhal

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidOperation = fmt.Errorf("operation not supported by sensor")
	ErrBadValue         = fmt.Errorf("bad value for current sensor state")
)

// Result is the status code surfaced to the framework transport.
type Result int

const (
	ResultOK Result = iota
	ResultInvalidOperation
	ResultBadValue
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "OK"
	case ResultInvalidOperation:
		return "INVALID_OPERATION"
	case ResultBadValue:
		return "BAD_VALUE"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

// ResultOf maps a control operation error to its result code. Errors outside
// the protocol taxonomy are reported as bad values.
func ResultOf(err error) Result {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, ErrInvalidOperation):
		return ResultInvalidOperation
	default:
		return ResultBadValue
	}
}
