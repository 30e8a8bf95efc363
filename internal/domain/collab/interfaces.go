package collab

import (
	"context"

	"github.com/rpggio/gridlayout/internal/domain/region"
)

// Handler receives inbound traffic and lifecycle events from a connection.
type Handler interface {
	HandleMessage(msg Message)
	HandleDisconnect(err error)
}

// Conn is an open channel to the hub for one layout.
type Conn interface {
	Send(ctx context.Context, msg Message) error
	Close() error
}

// Dialer opens a channel for a layout and routes inbound traffic to h.
// Implementations must not call h synchronously from Dial or Send.
type Dialer interface {
	Dial(ctx context.Context, layoutID, clientID string, h Handler) (Conn, error)
}

// Applier commits remote changes to the local region set. Implementations
// validate exactly like a local mutation would.
type Applier interface {
	ApplyRemote(r region.Region) error
	RemoveRemote(id string) error
	// LocalRegion returns the live local copy of a region.
	LocalRegion(id string) (region.Region, bool)
}
