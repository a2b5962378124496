package core

import "errors"

// Typed error kinds so callers can branch: bad input is rejected before
// any mutation, rule violations carry the specific reason, conflicts
// mean a state precondition failed (possibly a lost race) and refreshing
// may help, not-found is what it says.

type InvalidError string

func (e InvalidError) Error() string { return string(e) }

type RuleError string

func (e RuleError) Error() string { return string(e) }

type ConflictError string

func (e ConflictError) Error() string { return string(e) }

type NotFoundError string

func (e NotFoundError) Error() string { return string(e) + " not found" }

func Invalid(msg string) error  { return InvalidError(msg) }
func Rule(msg string) error     { return RuleError(msg) }
func Conflict(msg string) error { return ConflictError(msg) }
func NotFound(what string) error {
	return NotFoundError(what)
}

func IsInvalid(err error) bool {
	var e InvalidError
	return errors.As(err, &e)
}

func IsRule(err error) bool {
	var e RuleError
	return errors.As(err, &e)
}

func IsConflict(err error) bool {
	var e ConflictError
	return errors.As(err, &e)
}

func IsNotFound(err error) bool {
	var e NotFoundError
	return errors.As(err, &e)
}
