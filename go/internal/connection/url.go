package connection

import (
	"fmt"
	"net/url"
	"strings"
)

// RoomURL builds the WebSocket endpoint of a room from the server base URL. https and wss
// bases map to wss, anything else to ws.
func RoomURL(serverURL, roomID, credential string) (string, error) {
	base, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	if base.Host == "" {
		return "", fmt.Errorf("server url %q has no host", serverURL)
	}

	scheme := "ws"
	switch base.Scheme {
	case "https", "wss":
		scheme = "wss"
	}

	query := url.Values{}
	query.Set("token", credential)

	return fmt.Sprintf("%s://%s%s/ws/%s?%s",
		scheme,
		base.Host,
		strings.TrimRight(base.Path, "/"),
		url.PathEscape(roomID),
		query.Encode(),
	), nil
}
