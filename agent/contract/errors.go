package contract

import "errors"

var (
	ErrValidation     = errors.New("validation failed")
	ErrPlanParse      = errors.New("plan output is malformed")
	ErrUnknownAgent   = errors.New("agent is not registered")
	ErrToolValidation = errors.New("tool parameters violate schema")
	ErrAgentExecution = errors.New("agent execution failed")
	ErrPersistence    = errors.New("reservation commit failed")
	ErrNarration      = errors.New("narration failed")
)
