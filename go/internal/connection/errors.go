package connection

import "errors"

var (
	ErrNotLoggedIn  = errors.New("no credential: log in first")
	ErrEmptyRoom    = errors.New("room id is empty")
	ErrNotConnected = errors.New("not connected")
)
