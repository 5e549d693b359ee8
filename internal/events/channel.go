package events

import (
	"sync"

	logging "github.com/ipfs/go-log/v2"

	"github.com/cryguy/rtcbridge/internal/eventloop"
)

var log = logging.Logger("rtcbridge/events")

// SubID identifies one channel subscription.
type SubID uint64

type subscription[P any] struct {
	id SubID
	fn func(P)
}

// Channel is the publish/subscribe transport of one subsystem. Event names
// are fully qualified (prefix + bare name). Deliveries run on the event loop
// in publish order.
type Channel[P any] struct {
	prefix string
	loop   *eventloop.EventLoop

	mu     sync.Mutex
	subs   map[string][]subscription[P]
	byID   map[SubID]string
	nextID SubID
	taps   []func(name string, payload P)
}

// NewChannel creates a channel whose events carry prefix.
func NewChannel[P any](loop *eventloop.EventLoop, prefix string) *Channel[P] {
	return &Channel[P]{
		prefix: prefix,
		loop:   loop,
		subs:   make(map[string][]subscription[P]),
		byID:   make(map[SubID]string),
	}
}

// Prefix returns the namespace string of the channel.
func (c *Channel[P]) Prefix() string {
	return c.prefix
}

// Name qualifies a bare event name with the channel prefix.
func (c *Channel[P]) Name(event string) string {
	return c.prefix + event
}

// Tap registers fn to observe every publish before fan-out, regardless of
// subscriptions. Used by tracing.
func (c *Channel[P]) Tap(fn func(name string, payload P)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.taps = append(c.taps, fn)
}

// Publish queues delivery of payload to every subscription of fullName.
// Subscriptions are resolved at delivery time, on the loop.
func (c *Channel[P]) Publish(fullName string, payload P) {
	if !c.loop.Post(func() { c.deliver(fullName, payload) }) {
		log.Debugf("events: loop closed, dropped %s", fullName)
	}
}

func (c *Channel[P]) deliver(fullName string, payload P) {
	c.mu.Lock()
	taps := c.taps
	subs := append([]subscription[P](nil), c.subs[fullName]...)
	c.mu.Unlock()

	for _, tap := range taps {
		tap(fullName, payload)
	}
	for _, s := range subs {
		// A handler may remove a later subscription; skip it if so.
		if !c.live(s.id) {
			continue
		}
		c.call(fullName, s.fn, payload)
	}
}

func (c *Channel[P]) call(name string, fn func(P), payload P) {
	defer func() {
		if p := recover(); p != nil {
			log.Warnf("events: listener for %s panicked: %v", name, p)
		}
	}()
	fn(payload)
}

func (c *Channel[P]) live(id SubID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.byID[id]
	return ok
}

// Subscribe registers fn for fullName and returns its handle.
func (c *Channel[P]) Subscribe(fullName string, fn func(P)) SubID {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.subs[fullName] = append(c.subs[fullName], subscription[P]{id: id, fn: fn})
	c.byID[id] = fullName
	return id
}

// Unsubscribe removes exactly one subscription. Unknown handles are ignored.
func (c *Channel[P]) Unsubscribe(id SubID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	name, ok := c.byID[id]
	if !ok {
		return
	}
	delete(c.byID, id)
	list := c.subs[name]
	for i, s := range list {
		if s.id == id {
			list = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(c.subs, name)
	} else {
		c.subs[name] = list
	}
}

// UnsubscribeAll removes every subscription of fullName.
func (c *Channel[P]) UnsubscribeAll(fullName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.subs[fullName] {
		delete(c.byID, s.id)
	}
	delete(c.subs, fullName)
}

// Count returns the number of subscriptions of fullName.
func (c *Channel[P]) Count(fullName string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs[fullName])
}
