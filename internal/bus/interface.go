package bus

import (
	"context"
)

// Handler receives events drained from the bus for rooms this process is
// subscribed to. payload is the client-ready frame with the origin tag
// already stripped.
type Handler func(room string, payload []byte)

// Bus is the cross-process broadcast fanout. One channel per room; events
// published here reach every process subscribed to that room, including the
// origin process, which recognises its own events by the origin tag and
// drops them (local delivery already happened at publish time).
type Bus interface {
	// Publish stamps the frame with this process's origin id and publishes
	// it to the room's channel exactly once.
	Publish(ctx context.Context, room string, frame any) error
	// Subscribe adds the room's channel to this process's subscription set.
	Subscribe(ctx context.Context, room string) error
	// Unsubscribe removes the room's channel from the subscription set.
	Unsubscribe(ctx context.Context, room string) error
	Close() error
}
