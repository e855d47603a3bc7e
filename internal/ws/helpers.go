package ws

import (
	"crypto/rand"
	"encoding/hex"
)

// newConnID generates a random identifier for one websocket session, used to
// correlate log lines and metrics for a single connection.
func newConnID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}
