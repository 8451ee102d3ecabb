// Package errors provides the error constructors used throughout tenantscope.
// Errors are merry errors, so sentinels can be matched with Is while wrapped
// errors keep their cause and any attached messages.
package errors

import (
	"errors"
	"fmt"

	"github.com/ansel1/merry/v2"
)

// Sentinel makes a package-level error value intended for comparison with Is.
// No stack is captured; a stack is attached where the sentinel is wrapped.
func Sentinel(message string) error {
	return merry.New(message, merry.NoCaptureStack())
}

func New(message string) error {
	return merry.WrapSkipping(errString(message), 1, merry.CaptureStack(false))
}

func Newf(message string, a ...any) error {
	return merry.WrapSkipping(fmt.Errorf(message, a...), 1, merry.CaptureStack(false))
}

func Wrap(err error, wrappers ...merry.Wrapper) error {
	wrappers = append(wrappers, merry.CaptureStack(false))
	return merry.WrapSkipping(err, 1, wrappers...)
}

func WithCause(err error) merry.Wrapper {
	return merry.WithCause(err)
}

func WithMessage(msg string) merry.Wrapper {
	return merry.WithMessage(msg)
}

func WithMessagef(msg string, args ...any) merry.Wrapper {
	return merry.WithMessagef(msg, args...)
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

type errString string

func (e errString) Error() string {
	return string(e)
}
