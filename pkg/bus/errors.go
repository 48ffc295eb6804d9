package bus

import (
	"fmt"
	"runtime/debug"
)

// PanicError carries a recovered panic out of a subscriber or macro.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	if e == nil {
		return ""
	}

	return fmt.Sprintf("handler panicked: %v", e.Value)
}

// Guard runs fn and converts a panic into a *PanicError.
func Guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	return fn()
}
