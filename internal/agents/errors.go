package agents

import "errors"

var (
	// ErrInvalidToken covers unknown, already consumed, and already claimed
	// tokens. The three cases are deliberately indistinguishable to callers.
	ErrInvalidToken = errors.New("invalid or already used registration token")

	// ErrDeviceAlreadyRegistered means the device identifier is bound to
	// another agent.
	ErrDeviceAlreadyRegistered = errors.New("device already registered to another agent")

	// ErrUnauthorized means the presented credential resolves to no agent.
	ErrUnauthorized = errors.New("unknown agent credential")

	ErrAgentNotFound  = errors.New("agent not found")
	ErrInvalidAgentID = errors.New("invalid agent ID")
)
