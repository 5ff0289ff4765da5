package admin

import "errors"

var (
	ErrEventNotFound = errors.New("event not found")
	ErrUnauthorized  = errors.New("wrong password")
	ErrForbidden     = errors.New("admin secret mismatch")
	ErrBadEventID    = errors.New("event id and password are required")
)
