package collab

import "fmt"

// ConnectionState is the lifecycle state of the collaboration channel.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "invalid"
	}
}

func (s ConnectionState) validateTransitionTo(next ConnectionState) error {
	switch s {
	case StateDisconnected:
		switch next {
		case StateConnecting, StateClosed:
			return nil
		}
	case StateConnecting:
		switch next {
		case StateConnected, StateDisconnected, StateClosed:
			return nil
		}
	case StateConnected:
		switch next {
		case StateDisconnected, StateClosed:
			return nil
		}
	}
	return fmt.Errorf("%w: %v to %v", ErrInvalidState, s, next)
}
