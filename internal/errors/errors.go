// Package errors carries helpers for layering a public, machine-checkable
// error kind on top of an internal cause without losing either.
package errors

import "errors"

// With returns an error that represents top wrapped on top of the base
// error. errors.Is and errors.As match against top first and then walk the
// unwrap chain down into base.
func With(base, top error) error {
	if base == nil && top == nil {
		return nil
	}
	if top == nil {
		return base
	}
	if base == nil {
		return top
	}
	return union{base: base, top: top}
}

type union struct {
	base error
	top  error
}

func (u union) Error() string {
	return u.top.Error() + ": " + u.base.Error()
}

func (u union) Is(target error) bool {
	return errors.Is(u.top, target) || errors.Is(u.base, target)
}

func (u union) As(target any) bool {
	return errors.As(u.top, target) || errors.As(u.base, target)
}

func (u union) Unwrap() error {
	return u.base
}
