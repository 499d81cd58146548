package domain

// Identity is the authenticated principal bound to a connection. It is
// constructed exactly once, from the verified credential at the websocket
// handshake, and is never derived from message payloads.
type Identity struct {
	UserID string
}

func (i Identity) IsZero() bool {
	return i.UserID == ""
}
