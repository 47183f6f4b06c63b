package smoothie

import (
	"sync"
)

// Handler receives decoded events.
type Handler func(Event)

type subscription struct {
	id   uint64
	kind Kind
	all  bool
	h    Handler
}

// Dispatcher decodes lines with a Parser and hands each event to the
// handlers subscribed to its kind. The subscriber list is its only
// state; Dispatch may be called from any goroutine, but lines must be
// dispatched in the order they were received.
type Dispatcher struct {
	parser *Parser

	mu     sync.RWMutex
	nextID uint64
	subs   []subscription
}

// NewDispatcher returns a Dispatcher that decodes with p. A nil p uses a
// default Parser.
func NewDispatcher(p *Parser) *Dispatcher {
	if p == nil {
		p = defaultParser
	}
	return &Dispatcher{parser: p}
}

// Subscribe registers h for events of the given kind. The returned
// function removes the subscription.
func (d *Dispatcher) Subscribe(kind Kind, h Handler) (unsubscribe func()) {
	return d.add(subscription{kind: kind, h: h})
}

// SubscribeAll registers h for every event kind.
func (d *Dispatcher) SubscribeAll(h Handler) (unsubscribe func()) {
	return d.add(subscription{all: true, h: h})
}

func (d *Dispatcher) add(s subscription) func() {
	d.mu.Lock()
	d.nextID++
	s.id = d.nextID
	d.subs = append(d.subs, s)
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { d.remove(s.id) })
	}
}

func (d *Dispatcher) remove(id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, s := range d.subs {
		if s.id == id {
			d.subs = append(d.subs[:i:i], d.subs[i+1:]...)
			return
		}
	}
}

// Dispatch decodes line, calls every matching handler in subscription
// order and returns the event. Exactly one event is produced per line.
func (d *Dispatcher) Dispatch(line string) Event {
	ev := d.parser.Parse(line)

	d.mu.RLock()
	var matched []Handler
	for _, s := range d.subs {
		if s.all || s.kind == ev.Kind() {
			matched = append(matched, s.h)
		}
	}
	d.mu.RUnlock()

	for _, h := range matched {
		h(ev)
	}
	return ev
}
