package api

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisBroker implements EventBroker over Redis Pub/Sub so multiple API
// replicas share one event stream.
type RedisBroker struct {
	rdb *redis.Client
	mu  sync.Mutex
	ps  map[chan Event]*redis.PubSub
}

func NewRedisBroker(url string) (*RedisBroker, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisBroker{rdb: redis.NewClient(opt), ps: map[chan Event]*redis.PubSub{}}, nil
}

func (b *RedisBroker) Subscribe(topic string) chan Event {
	ch := make(chan Event, 16)
	ctx := context.Background()
	ps := b.rdb.Subscribe(ctx, b.chanName(topic))
	// initial consume to ensure subscription
	_, _ = ps.Receive(ctx)
	b.mu.Lock()
	b.ps[ch] = ps
	b.mu.Unlock()
	go func() {
		defer close(ch)
		for msg := range ps.Channel() {
			var evt Event
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err == nil {
				select {
				case ch <- evt:
				default:
				}
			}
		}
	}()
	return ch
}

func (b *RedisBroker) Unsubscribe(topic string, ch chan Event) {
	b.mu.Lock()
	ps := b.ps[ch]
	delete(b.ps, ch)
	b.mu.Unlock()
	if ps != nil {
		// closing the pubsub ends the reader goroutine, which closes ch
		_ = ps.Close()
	}
}

func (b *RedisBroker) Publish(topic string, evt Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, _ := json.Marshal(evt)
	_ = b.rdb.Publish(ctx, b.chanName(topic), data).Err()
}

func (b *RedisBroker) chanName(topic string) string { return "carbonroute:" + topic }
