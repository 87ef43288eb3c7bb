package fabric

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// GoRedisPubSub adapts a *redis.Client to RedisPubSubClient, the minimal
// surface RedisEventBus needs.
type GoRedisPubSub struct {
	client *redis.Client
}

func NewGoRedisPubSub(addr string) *GoRedisPubSub {
	return &GoRedisPubSub{client: redis.NewClient(&redis.Options{Addr: addr})}
}

func (g *GoRedisPubSub) Publish(ctx context.Context, channel string, message []byte) error {
	return g.client.Publish(ctx, channel, message).Err()
}

func (g *GoRedisPubSub) Subscribe(ctx context.Context, channel string, handler func([]byte)) (func(), error) {
	sub := g.client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, err
	}

	ch := sub.Channel()
	done := make(chan struct{})
	go func() {
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler([]byte(msg.Payload))
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		sub.Close()
	}, nil
}

func (g *GoRedisPubSub) Close() error {
	return g.client.Close()
}
