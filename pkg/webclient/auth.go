package webclient

import "context"

// AuthState classifies the page's login status. It is derived on every
// check and never cached.
type AuthState int

const (
	StateIndeterminate AuthState = iota
	StateUnauthenticated
	StateAuthenticated
)

func (s AuthState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "indeterminate"
	}
}

// State checks the QR marker first, then the conversation list. Lookup
// errors map to StateIndeterminate so one flaky query never fails a poll.
func (c *Client) State(ctx context.Context) AuthState {
	_, hasQR, err := c.dom.Find(ctx, c.sel.QRMarker)
	if err != nil {
		c.log.Debug("QR marker lookup failed", "error", err)
		return StateIndeterminate
	}
	if hasQR {
		return StateUnauthenticated
	}

	_, hasList, err := c.dom.Find(ctx, c.sel.ChatList)
	if err != nil {
		c.log.Debug("Chat list lookup failed", "error", err)
		return StateIndeterminate
	}
	if hasList {
		return StateAuthenticated
	}

	return StateIndeterminate
}
