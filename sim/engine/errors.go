package engine

import "errors"

var (
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrRunComplete          = errors.New("simulation already complete")

	ErrInvalidScenario = errors.New("invalid scenario")
	ErrInvalidHeading  = errors.New("invalid direction")
	ErrInvalidCommand  = errors.New("invalid command")
	ErrOutOfBounds     = errors.New("position outside field")
	ErrDuplicateName   = errors.New("duplicate vehicle name")
)
