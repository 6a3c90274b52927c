package audio

import "sync"

type speechDone struct {
	session uint64
	err     error
}

type playbackTick struct {
	session uint64
	status  PlaybackStatus
}

// inbox queues device callbacks for the event loop. post never blocks, so a
// device may report status while the loop is waiting on that same device.
type inbox struct {
	mu     sync.Mutex
	events []any
	ready  chan struct{}
}

func newInbox() *inbox {
	return &inbox{ready: make(chan struct{}, 1)}
}

func (b *inbox) post(ev any) {
	b.mu.Lock()
	b.events = append(b.events, ev)
	b.mu.Unlock()

	select {
	case b.ready <- struct{}{}:
	default:
	}
}

func (b *inbox) drain() []any {
	b.mu.Lock()
	defer b.mu.Unlock()
	events := b.events
	b.events = nil
	return events
}
