package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/john0isaac/fastroom/internal/config"
)

// RedisBus implements Bus over Redis pub/sub. All room channels share one
// PubSub connection and exactly one reader goroutine, started lazily on the
// first subscription.
type RedisBus struct {
	client        *redis.Client
	origin        string
	channelPrefix string
	handler       Handler

	mu            sync.Mutex
	pubsub        *redis.PubSub
	readerStarted bool
	readerCtx     context.Context
	readerCancel  context.CancelFunc
	readerDone    chan struct{}
}

// NewRedisBus connects to Redis. origin is this process's id, used to filter
// out self-published events when draining the bus. The handler is invoked
// from the reader goroutine for every foreign event.
func NewRedisBus(cfg config.RedisConfig, channelPrefix, origin string, handler Handler) (*RedisBus, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if channelPrefix == "" {
		channelPrefix = "room:"
	}

	readerCtx, readerCancel := context.WithCancel(context.Background())
	return &RedisBus{
		client:        client,
		origin:        origin,
		channelPrefix: channelPrefix,
		handler:       handler,
		readerCtx:     readerCtx,
		readerCancel:  readerCancel,
		readerDone:    make(chan struct{}),
	}, nil
}

func (b *RedisBus) channelFor(room string) string {
	return b.channelPrefix + room
}

func (b *RedisBus) Publish(ctx context.Context, room string, frame any) error {
	data, err := encodeOutgoing(b.origin, frame)
	if err != nil {
		return fmt.Errorf("failed to encode bus event: %w", err)
	}
	return b.client.Publish(ctx, b.channelFor(room), data).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, room string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pubsub == nil {
		b.pubsub = b.client.Subscribe(ctx)
	}
	if err := b.pubsub.Subscribe(ctx, b.channelFor(room)); err != nil {
		return fmt.Errorf("failed to subscribe channel: %w", err)
	}
	if !b.readerStarted {
		b.readerStarted = true
		go b.readerLoop()
	}
	return nil
}

func (b *RedisBus) Unsubscribe(ctx context.Context, room string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pubsub == nil {
		return nil
	}
	return b.pubsub.Unsubscribe(ctx, b.channelFor(room))
}

// readerLoop is the process-wide bus reader: it drains every subscribed room
// channel and hands foreign events to the handler. A handler or delivery
// failure never stops the loop.
func (b *RedisBus) readerLoop() {
	defer close(b.readerDone)

	ch := b.pubsub.Channel()
	for {
		select {
		case <-b.readerCtx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			room, payload, keep := DecodeIncoming(b.origin, []byte(msg.Payload))
			if !keep {
				continue
			}
			b.handler(room, payload)
		}
	}
}

func (b *RedisBus) Close() error {
	b.readerCancel()

	b.mu.Lock()
	pubsub := b.pubsub
	started := b.readerStarted
	b.mu.Unlock()

	if pubsub != nil {
		pubsub.Close()
	}
	if started {
		<-b.readerDone
	}
	return b.client.Close()
}
