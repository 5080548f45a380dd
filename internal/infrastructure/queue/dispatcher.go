package queue

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/birimbahub/marketplace/internal/core/domain"
	"github.com/birimbahub/marketplace/internal/core/ports"
	"github.com/birimbahub/marketplace/internal/metrics"
)

const channelBuffer = 64

// Dispatcher fans auth-change notifications out to subscribers. Every
// subscriber owns one worker goroutine, so it sees changes in publish order
// and a slow subscriber never delays the others.
type Dispatcher struct {
	mu      sync.Mutex
	workers map[int]*worker
	nextID  int
	closed  bool
	log     zerolog.Logger
}

type worker struct {
	id       int
	ch       chan domain.AuthChange
	listener ports.AuthStateListener
	done     chan struct{}
	once     sync.Once
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher(log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		workers: make(map[int]*worker),
		log:     log,
	}
}

// Subscribe registers listener and starts its worker. Changes in initial are
// delivered to this listener only, ahead of anything published later.
func (d *Dispatcher) Subscribe(listener ports.AuthStateListener, initial ...domain.AuthChange) ports.Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()

	w := &worker{
		id:       d.nextID,
		ch:       make(chan domain.AuthChange, channelBuffer),
		listener: listener,
		done:     make(chan struct{}),
	}
	d.nextID++
	if d.closed {
		close(w.ch)
		close(w.done)
		return &subscription{d: d, w: w}
	}
	for _, c := range initial {
		w.ch <- c
	}
	d.workers[w.id] = w
	go d.runWorker(w)
	return &subscription{d: d, w: w}
}

// Publish enqueues change for every current subscriber without blocking. A
// subscriber whose buffer is full loses the change; the drop is logged and
// counted.
func (d *Dispatcher) Publish(change domain.AuthChange) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	for _, w := range d.workers {
		select {
		case w.ch <- change:
		default:
			metrics.AuthChangesDroppedTotal.Inc()
			d.log.Error().
				Str("event", string(change.Kind)).
				Int("subscriber_id", w.id).
				Msg("auth listener backlog full, change dropped")
		}
	}
}

// Subscribers returns the number of active subscribers.
func (d *Dispatcher) Subscribers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.workers)
}

// Close stops every worker after it has drained its queue.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	workers := make([]*worker, 0, len(d.workers))
	for id, w := range d.workers {
		workers = append(workers, w)
		delete(d.workers, id)
		w.once.Do(func() { close(w.ch) })
	}
	d.mu.Unlock()

	for _, w := range workers {
		<-w.done
	}
}

func (d *Dispatcher) remove(w *worker) {
	d.mu.Lock()
	if _, ok := d.workers[w.id]; ok {
		delete(d.workers, w.id)
		w.once.Do(func() { close(w.ch) })
	}
	d.mu.Unlock()
}

func (d *Dispatcher) runWorker(w *worker) {
	defer close(w.done)
	for change := range w.ch {
		d.deliver(w, change)
	}
}

func (d *Dispatcher) deliver(w *worker, change domain.AuthChange) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().
				Interface("panic", r).
				Str("event", string(change.Kind)).
				Int("subscriber_id", w.id).
				Msg("auth listener panicked")
		}
	}()
	w.listener(change)
}

type subscription struct {
	d *Dispatcher
	w *worker
}

// Unsubscribe stops delivery to the listener. Changes already queued for it
// are still delivered.
func (s *subscription) Unsubscribe() {
	s.d.remove(s.w)
}
