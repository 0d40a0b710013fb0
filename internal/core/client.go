package core

import (
	"sync"

	"github.com/vovakirdan/wireroom-server/internal/metrics"
)

// Client is one transport session as seen by the core layer. The transport
// owns it; the hub goroutine is the only writer of its room and identity
// fields.
type Client struct {
	ID string
	IP string

	send     chan []byte
	done     chan struct{}
	kickOnce sync.Once
	metrics  *metrics.Metrics

	identity      *Identity
	room          *Room
	participant   *Participant
	dirSubscribed bool
}

// NewClient constructs a client with an outbound queue of sendBuffer frames.
func NewClient(id, ip string, sendBuffer int) *Client {
	if sendBuffer <= 0 {
		sendBuffer = 64
	}
	return &Client{
		ID:   id,
		IP:   ip,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

// Send returns the outbound queue the transport drains.
func (c *Client) Send() <-chan []byte {
	return c.send
}

// Done is closed once the client has been kicked.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Deliver enqueues payload without blocking. A client whose queue is full
// is kicked and receives nothing further.
func (c *Client) Deliver(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		c.metrics.SlowConsumer()
		c.Kick()
		return false
	}
}

// Kick marks the client for disconnection. It is safe to call more than once.
func (c *Client) Kick() {
	c.kickOnce.Do(func() { close(c.done) })
}
