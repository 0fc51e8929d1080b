package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrUnknownSchema = errors.New("unknown schema")
)
