package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/john0isaac/fastroom/internal/bus"
	"github.com/john0isaac/fastroom/internal/presence"
	"github.com/john0isaac/fastroom/pkg/log"
)

// Departure records a room from which a disconnecting user globally
// disappeared, so the caller can announce it exactly as an explicit leave
// would have.
type Departure struct {
	Room     string
	Username string
}

type hbKey struct {
	client *Client
	room   string
}

type heartbeat struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Hub is the per-process connection registry. It tracks which local sockets
// are in which rooms, owns one heartbeat task per (connection, room) pair,
// and keeps the bus subscription set aligned with local membership: a room's
// channel is subscribed iff at least one local connection is in that room.
//
// The hub's maps are the only memory shared across this process's tasks; a
// single mutex serializes every mutating operation. The presence store and
// the bus are external services whose own atomicity, plus prefix-scan
// reconciliation, stand in for any distributed locking.
type Hub struct {
	mu         sync.Mutex
	rooms      map[string]map[*Client]struct{}
	connRooms  map[*Client]map[string]struct{}
	heartbeats map[hbKey]*heartbeat
	subscribed map[string]struct{}

	store      presence.Store
	bus        bus.Bus
	hbInterval time.Duration
}

// New creates a hub. Call SetBus before the first Join.
func New(store presence.Store, hbInterval time.Duration) *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]struct{}),
		connRooms:  make(map[*Client]map[string]struct{}),
		heartbeats: make(map[hbKey]*heartbeat),
		subscribed: make(map[string]struct{}),
		store:      store,
		hbInterval: hbInterval,
	}
}

// SetBus wires the broadcast bus. The bus's reader should deliver through
// DeliverLocal.
func (h *Hub) SetBus(b bus.Bus) {
	h.bus = b
}

// Join registers the connection under the room, subscribing the room's bus
// channel if this is the first local member, and writes the connection's
// presence record synchronously so an immediately following presence scan
// already sees it. It reports whether this is the user's first connection to
// the room across the whole cluster.
//
// The first-global check scans before the new record is written, preserving
// a small race window under truly concurrent cross-process joins; the worst
// case is a rare duplicate join announcement.
func (h *Hub) Join(ctx context.Context, room string, c *Client) bool {
	l := log.Ctx(ctx)

	h.mu.Lock()
	if _, already := h.rooms[room][c]; already {
		h.mu.Unlock()
		return false
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][c] = struct{}{}
	if h.connRooms[c] == nil {
		h.connRooms[c] = make(map[string]struct{})
	}
	h.connRooms[c][room] = struct{}{}

	if _, subbed := h.subscribed[room]; !subbed {
		if err := h.bus.Subscribe(ctx, room); err != nil {
			l.Error().Str(log.FieldRoom, room).Err(err).Msg("failed to subscribe room channel")
		} else {
			h.subscribed[room] = struct{}{}
		}
	}
	h.mu.Unlock()

	firstGlobal := false
	present, err := h.store.UserPresent(ctx, room, c.Username)
	if err != nil {
		l.Error().Str(log.FieldRoom, room).Str(log.FieldUsername, c.Username).Err(err).Msg("presence scan failed on join")
	} else {
		firstGlobal = !present
	}

	rec := presence.Record{Room: room, Username: c.Username, ConnID: c.ID}
	if err := h.store.Put(ctx, rec); err != nil {
		l.Error().Str(log.FieldRoom, room).Str(log.FieldUsername, c.Username).Err(err).Msg("failed to write presence record")
	}
	h.startHeartbeat(rec, c)

	return firstGlobal
}

// Leave removes the local membership, stops and awaits the pair's heartbeat,
// deletes the presence record, and unsubscribes the room's channel if no
// local members remain. It reports whether this was the user's last
// remaining connection to the room anywhere in the cluster.
func (h *Hub) Leave(ctx context.Context, room string, c *Client) (removedGlobal bool, username string) {
	l := log.Ctx(ctx)

	h.mu.Lock()
	if clients, ok := h.rooms[room]; ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.rooms, room)
		}
	}
	if joined := h.connRooms[c]; joined != nil {
		delete(joined, room)
	}
	h.mu.Unlock()

	h.stopHeartbeat(ctx, presence.Record{Room: room, Username: c.Username, ConnID: c.ID}, c)

	present, err := h.store.UserPresent(ctx, room, c.Username)
	if err != nil {
		l.Error().Str(log.FieldRoom, room).Str(log.FieldUsername, c.Username).Err(err).Msg("presence scan failed on leave")
	} else {
		removedGlobal = !present
	}

	h.unsubscribeIfEmpty(ctx, room)

	return removedGlobal, c.Username
}

// LeaveAll is the disconnect path: it leaves every room the connection had
// joined and returns the rooms where the user globally disappeared, so the
// caller can broadcast the same presence-diff and system message an explicit
// leave would have produced. Peers must never have to wait for heartbeat
// expiry to learn about a vanished user.
func (h *Hub) LeaveAll(ctx context.Context, c *Client) []Departure {
	h.mu.Lock()
	joined := make([]string, 0, len(h.connRooms[c]))
	for room := range h.connRooms[c] {
		joined = append(joined, room)
	}
	h.mu.Unlock()

	var departures []Departure
	for _, room := range joined {
		removed, username := h.Leave(ctx, room, c)
		if removed && username != "" {
			departures = append(departures, Departure{Room: room, Username: username})
		}
	}

	h.mu.Lock()
	delete(h.connRooms, c)
	h.mu.Unlock()

	return departures
}

// IsMember is the fast local membership check used to authorize chat and
// typing frames without a store round trip.
func (h *Hub) IsMember(c *Client, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.connRooms[c][room]
	return ok
}

// LocalCount returns how many local connections are in the room.
func (h *Hub) LocalCount(room string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[room])
}

// Subscribed reports whether the room's bus channel is currently held.
func (h *Hub) Subscribed(room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.subscribed[room]
	return ok
}

// BroadcastLocal serializes the frame once and enqueues it to every local
// member of the room, optionally excluding one connection. Per-client
// delivery failures are logged and do not affect the other clients.
func (h *Hub) BroadcastLocal(room string, frame any, exclude *Client) {
	data, err := json.Marshal(frame)
	if err != nil {
		l := log.L()
		l.Error().Str(log.FieldRoom, room).Err(err).Msg("failed to marshal broadcast frame")
		return
	}
	h.deliver(room, data, exclude)
}

// DeliverLocal fans a bus payload out to every local member of the room. It
// is the bus reader's delivery target.
func (h *Hub) DeliverLocal(room string, payload []byte) {
	h.deliver(room, payload, nil)
}

func (h *Hub) deliver(room string, payload []byte, exclude *Client) {
	h.mu.Lock()
	targets := make([]*Client, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		if c == exclude {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		if err := c.SendRaw(payload); err != nil {
			l := log.L()
			l.Debug().Str(log.FieldRoom, room).Str(log.FieldConnID, c.ID).Err(err).Msg("local delivery failed")
		}
	}
}

// Publish forwards a frame to the broadcast bus for cross-process fanout.
func (h *Hub) Publish(ctx context.Context, room string, frame any) error {
	return h.bus.Publish(ctx, room, frame)
}

// Shutdown stops every heartbeat and deletes its presence record, so peers
// see this process's users disappear promptly instead of after TTL expiry.
func (h *Hub) Shutdown(ctx context.Context) {
	h.mu.Lock()
	keys := make([]hbKey, 0, len(h.heartbeats))
	for k := range h.heartbeats {
		keys = append(keys, k)
	}
	h.mu.Unlock()

	for _, k := range keys {
		rec := presence.Record{Room: k.room, Username: k.client.Username, ConnID: k.client.ID}
		h.stopHeartbeat(ctx, rec, k.client)
	}
}

// startHeartbeat spawns the single periodic task owned by this
// (connection, room) pair. The initial record write already happened in
// Join; the task only refreshes it.
func (h *Hub) startHeartbeat(rec presence.Record, c *Client) {
	key := hbKey{client: c, room: rec.Room}

	h.mu.Lock()
	if _, exists := h.heartbeats[key]; exists {
		h.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	hb := &heartbeat{cancel: cancel, done: make(chan struct{})}
	h.heartbeats[key] = hb
	h.mu.Unlock()

	go h.runHeartbeat(ctx, rec, hb.done)
}

func (h *Hub) runHeartbeat(ctx context.Context, rec presence.Record, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(h.hbInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.store.Put(ctx, rec); err != nil {
				l := log.L()
				l.Error().Str(log.FieldRoom, rec.Room).Str(log.FieldUsername, rec.Username).Err(err).Msg("heartbeat refresh failed")
			}
		}
	}
}

// stopHeartbeat cancels the pair's task, waits for it to finish, and deletes
// the presence record. If the delete fails the record expires within one TTL
// window, bounding presence staleness.
func (h *Hub) stopHeartbeat(ctx context.Context, rec presence.Record, c *Client) {
	key := hbKey{client: c, room: rec.Room}

	h.mu.Lock()
	hb := h.heartbeats[key]
	delete(h.heartbeats, key)
	h.mu.Unlock()

	if hb == nil {
		return
	}
	hb.cancel()
	<-hb.done

	if err := h.store.Delete(ctx, rec); err != nil {
		l := log.Ctx(ctx)
		l.Debug().Str(log.FieldRoom, rec.Room).Str(log.FieldUsername, rec.Username).Err(err).Msg("failed to delete presence record")
	}
}

func (h *Hub) unsubscribeIfEmpty(ctx context.Context, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.rooms[room]) > 0 {
		return
	}
	if _, subbed := h.subscribed[room]; !subbed {
		return
	}
	if err := h.bus.Unsubscribe(ctx, room); err != nil {
		l := log.Ctx(ctx)
		l.Error().Str(log.FieldRoom, room).Err(err).Msg("failed to unsubscribe room channel")
		return
	}
	delete(h.subscribed, room)
}
