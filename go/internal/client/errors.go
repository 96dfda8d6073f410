package client

import (
	"errors"

	"github.com/mcdev12/roomsync/go/internal/connection"
)

var (
	ErrNotLoggedIn       = connection.ErrNotLoggedIn
	ErrNotConnected      = connection.ErrNotConnected
	ErrInvalidCredential = errors.New("server returned a credential without a usable identity")
	ErrUnknownTarget     = errors.New("direct message target is not in the room")
)
