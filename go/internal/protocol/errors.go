package protocol

import "errors"

var (
	ErrMissingType    = errors.New("frame has no type")
	ErrMissingPayload = errors.New("frame payload is required")
)
