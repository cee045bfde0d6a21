package utils

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// stackError はスタックトレースを保持するエラーです
type stackError struct {
	err   error
	stack []byte
}

func (e *stackError) Error() string {
	return fmt.Sprintf("%v\nStack trace:\n%s", e.err, e.stack)
}

func (e *stackError) Unwrap() error {
	return e.err
}

// GetStackWithError はエラーにスタックトレースを付けて返します
// すでにスタックトレースを持つエラーはそのまま返すため、main で重ねて呼んでも二重になりません
func GetStackWithError(err error) error {
	if err == nil {
		return nil
	}
	var se *stackError
	if errors.As(err, &se) {
		return err
	}
	return &stackError{err: err, stack: debug.Stack()}
}
