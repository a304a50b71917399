package pipeline

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	WrongRepository ErrorKind = iota + 1
	AgentStartFailed
	PullFailed
	BuildFailed
	RestartFailed
	Timeout
)

func (k ErrorKind) String() string {
	switch k {
	case WrongRepository:
		return "wrong_repository"
	case AgentStartFailed:
		return "agent_start_failed"
	case PullFailed:
		return "pull_failed"
	case BuildFailed:
		return "build_failed"
	case RestartFailed:
		return "restart_failed"
	case Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind ErrorKind
	// Repository named by a rejected notification. Only set for WrongRepository.
	Repository string
	Err        error
}

func (err *Error) Error() string {
	if err.Kind == WrongRepository {
		return fmt.Sprintf("tried to deploy a different repo: %s", err.Repository)
	}
	return err.Err.Error()
}

func (err *Error) Unwrap() error {
	return err.Err
}

func Errorf(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{
		Kind: kind,
		Err:  fmt.Errorf(format, args...),
	}
}

// ErrorKindOf returns the kind of a pipeline error, or zero if err is not one.
func ErrorKindOf(err error) ErrorKind {
	var e *Error
	if !errors.As(err, &e) {
		return 0
	}
	return e.Kind
}
