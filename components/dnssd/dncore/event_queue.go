package dncore

import "sync"

// EventQueue is an unbounded FIFO of browser events.
//
// Remarks:
//   - Push() never blocks, so a browser loop is never stalled by a slow reader.
//   - Events are delivered in the Push() order.
//   - Events() channel is closed after Close(), pending events are dropped.
type EventQueue struct {
	outCh    chan Event
	notifyCh chan struct{}
	doneCh   chan struct{}

	mu      sync.Mutex
	pending []Event
	closed  bool
}

// NewEventQueue is an initialization of EventQueue.
func NewEventQueue() *EventQueue {
	q := &EventQueue{
		outCh:    make(chan Event),
		notifyCh: make(chan struct{}, 1),
		doneCh:   make(chan struct{}),
	}

	go q.run()

	return q
}

// Events returns channel to read events from.
func (q *EventQueue) Events() <-chan Event {
	return q.outCh
}

// Push adds event to the queue.
//
// Remarks:
//   - Events pushed after Close() are dropped.
func (q *EventQueue) Push(event Event) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.pending = append(q.pending, event)

	select {
	case q.notifyCh <- struct{}{}:
	default:
	}
}

// Close stops events delivery and closes the events channel.
func (q *EventQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.pending = nil
	q.mu.Unlock()

	close(q.doneCh)

	return nil
}

func (q *EventQueue) run() {
	defer close(q.outCh)

	for {
		event, ok := q.pop()
		if !ok {
			select {
			case <-q.notifyCh:
				continue
			case <-q.doneCh:
				return
			}
		}

		select {
		case q.outCh <- event:
		case <-q.doneCh:
			return
		}
	}
}

func (q *EventQueue) pop() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return Event{}, false
	}

	event := q.pending[0]
	q.pending[0] = Event{}
	q.pending = q.pending[1:]

	return event, true
}
