package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrSlotUnavailable = errors.New("slot unavailable")
	ErrCannotCancel    = errors.New("booking cannot be canceled")
	ErrInvalidInput    = errors.New("invalid input")
)
