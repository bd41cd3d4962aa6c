package rtm

import (
	"errors"
	"fmt"

	"github.com/danmuck/rtmctl/internal/orb"
)

var (
	ErrServiceNotFound     = errors.New("rtm: service not found")
	ErrConnect             = errors.New("rtm: connect failed")
	ErrPortNotFound        = errors.New("rtm: port not found")
	ErrNoExecutionContext  = errors.New("rtm: component has no execution context")
	ErrLifecycle           = errors.New("rtm: lifecycle request rejected")
	ErrComponentDeclined   = errors.New("rtm: factory declined to create component")
	ErrInvalidPortSelector = errors.New("rtm: invalid port selector")
)

// LoadError reports a failed module load. Callers usually log it and carry on
// because the module may already be loaded.
type LoadError struct {
	Path     string
	InitFunc string
	Code     orb.ReturnCode
	Err      error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rtm: failed to load %s (%s): %v", e.Path, e.InitFunc, e.Err)
	}
	return fmt.Sprintf("rtm: failed to load %s (%s): %s", e.Path, e.InitFunc, e.Code)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
