package scenario

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownFunction is returned for a function name the scenario language does not define.
	ErrUnknownFunction = errors.New("unknown function")
	// ErrUnknownVariable is returned when a function argument refers to an undeclared variable.
	ErrUnknownVariable = errors.New("unknown variable")
)

type ErrScenario = error

func NewScenarioError(err error) ErrScenario {
	return fmt.Errorf("invalid scenario: %w", err)
}

type ErrStep = error

func NewStepError(index int, err error) ErrStep {
	return fmt.Errorf("failed to apply step %d: %w", index, err)
}
