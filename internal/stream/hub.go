package stream

import (
	"context"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Hub fans appended timeline points out to websocket subscribers. Clients
// subscribe to a single calendar date; every append for that date is pushed
// as the filter records it. With a redis client, appends are also published
// so subscribers on other instances receive them.
type Hub struct {
	redis   *redis.Client
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
}

// Client is one websocket subscriber for one date.
type Client struct {
	Date string
	Send chan []byte
}

func NewHub(redisClient *redis.Client) *Hub {
	h := &Hub{
		redis:   redisClient,
		clients: map[string]map[*Client]struct{}{},
	}

	if redisClient != nil {
		go h.subscribeRedis()
	}
	return h
}

func (h *Hub) Register(date string) *Client {
	client := &Client{
		Date: date,
		Send: make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[date] == nil {
		h.clients[date] = map[*Client]struct{}{}
	}
	h.clients[date][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if dateClients, ok := h.clients[client.Date]; ok {
		delete(dateClients, client)
		if len(dateClients) == 0 {
			delete(h.clients, client.Date)
		}
	}
	close(client.Send)
}

// Broadcast pushes a payload to every subscriber of the date. With redis the
// payload goes through the per-date channel so subscribers on every instance,
// this one included, receive it exactly once; without redis, or when the
// publish fails, it is delivered directly. Satisfies the filter's publisher
// contract.
func (h *Hub) Broadcast(date string, payload []byte) {
	if h.redis != nil {
		err := h.redis.Publish(context.Background(), redisChannel(date), payload).Err()
		if err == nil {
			return
		}
		log.Printf("redis publish error: %v", err)
	}
	h.deliver(date, payload)
}

// deliver fans a payload out to the local subscribers of the date. Slow
// clients are skipped rather than blocked on.
func (h *Hub) deliver(date string, payload []byte) {
	h.mu.RLock()
	clients := h.clients[date]
	h.mu.RUnlock()

	for client := range clients {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

func (h *Hub) subscribeRedis() {
	ctx := context.Background()
	pubsub := h.redis.PSubscribe(ctx, "timeline:*:appends")
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		h.deliver(dateFromChannel(msg.Channel), []byte(msg.Payload))
	}
}

func redisChannel(date string) string {
	return "timeline:" + date + ":appends"
}

func dateFromChannel(ch string) string {
	// timeline:{date}:appends
	const prefix = "timeline:"
	const suffix = ":appends"
	if len(ch) <= len(prefix)+len(suffix) {
		return ""
	}
	return ch[len(prefix) : len(ch)-len(suffix)]
}
