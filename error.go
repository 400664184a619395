package patchbay

import (
	"errors"
	"strings"
)

var (
	// ErrNilContext is returned when bus is created without context.
	ErrNilContext = errors.New("nil context")
	// ErrNoOutput is returned when bus without output node is connected.
	ErrNoOutput = errors.New("bus has no output node")
)

// disposeErrors wraps errors that might occur when multiple nodes fail
// to dispose.
type disposeErrors []error

func (e disposeErrors) Error() string {
	s := []string{}
	for _, se := range e {
		s = append(s, se.Error())
	}
	return strings.Join(s, ",")
}

// Is checks if any of errors match provided sentinel error.
func (e disposeErrors) Is(err error) bool {
	for _, se := range e {
		if errors.Is(se, err) {
			return true
		}
	}
	return false
}

// ret returns untyped nil if error list is empty.
func (e disposeErrors) ret() error {
	if len(e) > 0 {
		return e
	}
	return nil
}
