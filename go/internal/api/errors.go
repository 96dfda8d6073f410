package api

import "errors"

var (
	ErrEmptyUsername = errors.New("username is required")
	ErrNoToken       = errors.New("login response carried no token")
)
