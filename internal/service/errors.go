package service

import "errors"

// Error kinds returned to callers. Handlers map these to HTTP statuses with
// errors.Is; nothing here is ever swallowed silently.
var (
	// ErrCaseUnavailable: the case does not exist or is not published.
	ErrCaseUnavailable = errors.New("case unavailable")
	// ErrSessionNotFound: neither cache nor durable store knows the session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionTerminated: a mutation was attempted on a completed or
	// abandoned session.
	ErrSessionTerminated = errors.New("session already terminated")
	// ErrInvalidStateTransition: pause/resume/abandon from an ineligible
	// state.
	ErrInvalidStateTransition = errors.New("invalid session state transition")
	// ErrUnknownStep: the submitted step id is not in the case graph.
	ErrUnknownStep = errors.New("unknown step")
	// ErrUnknownOption: the submitted option id is not on the step.
	ErrUnknownOption = errors.New("unknown option")
	// ErrConcurrentModification: the optimistic write lost to a concurrent
	// submission; the caller should retry the whole operation.
	ErrConcurrentModification = errors.New("concurrent session modification")
)
