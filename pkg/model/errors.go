package model

import "errors"

var (
	ErrBlankName        = errors.New("name must not be blank")
	ErrDuplicateName    = errors.New("name already exists")
	ErrNotFound         = errors.New("not found")
	ErrIndexOutOfRange  = errors.New("index out of bounds")
	ErrNotMultiLink     = errors.New("not a multi-link")
	ErrNotSingleLink    = errors.New("not a single-link")
	ErrHookLinked       = errors.New("hook already has a link")
	ErrForeignHook      = errors.New("hook does not belong to the origin")
	ErrUnknownType      = errors.New("unknown module type")
	ErrDetached         = errors.New("node is not attached to a boundary")
	ErrStartDestination = errors.New("a start cannot be a link destination")
	ErrNotParameter     = errors.New("node is not a parameter")
	ErrAttached         = errors.New("entity is already attached")
)
