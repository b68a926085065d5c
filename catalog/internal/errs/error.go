package errs

import (
	"errors"
)

var (
	ErrNotFound       = errors.New("book not found")
	ErrValidation     = errors.New("title is required")
	ErrInvalidID      = errors.New("invalid id")
	ErrSourceNotFound = errors.New("csv source not found")
	// ErrDropped marks a spreadsheet row that carries no title.
	ErrDropped = errors.New("row dropped: empty title")
)
