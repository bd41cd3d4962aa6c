package orb

import "errors"

var (
	ErrTransport        = errors.New("orb: transport failure")
	ErrNarrow           = errors.New("orb: object does not support interface")
	ErrNameNotFound     = errors.New("orb: name not found")
	ErrAlreadyBound     = errors.New("orb: name already bound")
	ErrNotContext       = errors.New("orb: intermediate name is not a naming context")
	ErrInvalidName      = errors.New("orb: invalid name")
	ErrInvalidObjectRef = errors.New("orb: invalid object reference")
	ErrObjectNotExist   = errors.New("orb: object does not exist")
)
