package services

import (
	"errors"
	"fmt"
)

// Engine error taxonomy. Handlers map these with errors.Is; anything not in
// the list surfaces as an internal error.
var (
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// ErrNotEligible is a Conflict: a level-up was attempted while the current
// level's requirements are not met.
var ErrNotEligible = fmt.Errorf("%w: level requirements not met", ErrConflict)
