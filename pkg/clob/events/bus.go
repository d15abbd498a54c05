package events

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Bus fans engine events out to registered listeners from one dispatch
// goroutine. Publishing never blocks the matching path: when the buffer is
// full the event is dropped and counted.
type Bus struct {
	mu        sync.RWMutex
	listeners []Listener

	// ch is never closed: Close signals quit instead, so a publish racing
	// shutdown drops the event rather than panicking on a closed channel.
	ch      chan any
	quit    chan struct{}
	done    chan struct{}
	closed  sync.Once
	dropped atomic.Int64
	log     *zap.Logger
}

func NewBus(buffer int, log *zap.Logger) *Bus {
	if buffer <= 0 {
		buffer = 1024
	}
	if log == nil {
		log = zap.NewNop()
	}
	b := &Bus{
		ch:   make(chan any, buffer),
		quit: make(chan struct{}),
		done: make(chan struct{}),
		log:  log,
	}
	go b.run()
	return b
}

// Subscribe registers a listener for all subsequent events.
func (b *Bus) Subscribe(l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

// Close stops the dispatch loop after draining buffered events. Publishing
// after Close is safe; the events are silently discarded.
func (b *Bus) Close() {
	b.closed.Do(func() {
		close(b.quit)
		<-b.done
	})
}

// Dropped returns the number of events discarded due to a full buffer.
func (b *Bus) Dropped() int64 { return b.dropped.Load() }

func (b *Bus) PublishTrade(e Trade)                   { b.publish(e) }
func (b *Bus) PublishOrderAccepted(e OrderAccepted)   { b.publish(e) }
func (b *Bus) PublishOrderCancelled(e OrderCancelled) { b.publish(e) }
func (b *Bus) PublishBookCreated(e BookCreated)       { b.publish(e) }

func (b *Bus) publish(e any) {
	select {
	case b.ch <- e:
	default:
		if n := b.dropped.Add(1); n%1000 == 1 {
			b.log.Warn("event bus buffer full, dropping", zap.Int64("dropped", n))
		}
	}
}

func (b *Bus) run() {
	defer close(b.done)
	for {
		select {
		case e := <-b.ch:
			b.dispatch(e)
		case <-b.quit:
			// Drain whatever was buffered before the close.
			for {
				select {
				case e := <-b.ch:
					b.dispatch(e)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) dispatch(e any) {
	b.mu.RLock()
	listeners := b.listeners
	b.mu.RUnlock()

	for _, l := range listeners {
		switch ev := e.(type) {
		case Trade:
			l.OnTrade(ev)
		case OrderAccepted:
			l.OnOrderAccepted(ev)
		case OrderCancelled:
			l.OnOrderCancelled(ev)
		case BookCreated:
			l.OnBookCreated(ev)
		}
	}
}
