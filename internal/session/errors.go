package session

import "errors"

var (
	// ErrScenarioNotFound is returned when an experiment id is not in the catalog.
	ErrScenarioNotFound = errors.New("experiment not found")
	// ErrSessionNotFound is returned for unknown or evicted session ids.
	ErrSessionNotFound = errors.New("session not found")
	// ErrScenarioMismatch is returned when a session is addressed with another experiment id.
	ErrScenarioMismatch = errors.New("session belongs to a different experiment")
	// ErrSessionCompleted is returned when interacting with a completed session.
	ErrSessionCompleted = errors.New("session already completed")
	// ErrInteractionFailed wraps any unexpected failure during an interaction.
	// Session state is left unchanged when it is returned.
	ErrInteractionFailed = errors.New("interaction failed")
)
