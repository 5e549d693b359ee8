package events

import "sync"

// Listener is an application callback receiving an event's positional data.
// Listeners are compared by pointer: remove with the same *Listener that was
// added.
type Listener struct {
	fn func(args ...any)
}

// NewListener wraps fn.
func NewListener(fn func(args ...any)) *Listener {
	return &Listener{fn: fn}
}

// Registry is the listener side table of one proxy instance. It maps each
// bare event name and original listener to the channel subscription of the
// wrapper that filters by instance id.
type Registry struct {
	ch         *Channel[Envelope]
	instanceID string

	mu     sync.Mutex
	byName map[string]map[*Listener]SubID
}

// NewRegistry binds a registry to ch. A non-empty instanceID makes every
// wrapper drop envelopes addressed to other instances.
func NewRegistry(ch *Channel[Envelope], instanceID string) *Registry {
	return &Registry{
		ch:         ch,
		instanceID: instanceID,
		byName:     make(map[string]map[*Listener]SubID),
	}
}

// InstanceID returns the instance the registry filters for.
func (r *Registry) InstanceID() string {
	return r.instanceID
}

// Add subscribes l to the bare event name. Adding the same listener twice
// for one event keeps the first subscription.
func (r *Registry) Add(event string, l *Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.byName[event]
	if m == nil {
		m = make(map[*Listener]SubID)
		r.byName[event] = m
	}
	if _, ok := m[l]; ok {
		return
	}
	want := r.instanceID
	m[l] = r.ch.Subscribe(r.ch.Name(event), func(env Envelope) {
		if want != "" && env.InstanceID != want {
			return
		}
		l.fn(env.Data...)
	})
}

// Remove unsubscribes exactly the wrapper created for l under event.
func (r *Registry) Remove(event string, l *Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.byName[event]
	id, ok := m[l]
	if !ok {
		return
	}
	r.ch.Unsubscribe(id)
	delete(m, l)
	if len(m) == 0 {
		delete(r.byName, event)
	}
}

// RemoveAll unsubscribes every wrapper this registry created for event, or
// for all events when event is "". Subscriptions of other instances on the
// same channel are untouched.
func (r *Registry) RemoveAll(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if event != "" {
		r.removeEventLocked(event)
		return
	}
	for name := range r.byName {
		r.removeEventLocked(name)
	}
}

func (r *Registry) removeEventLocked(event string) {
	for _, id := range r.byName[event] {
		r.ch.Unsubscribe(id)
	}
	delete(r.byName, event)
}

// Len returns the number of listeners registered for event.
func (r *Registry) Len(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byName[event])
}
