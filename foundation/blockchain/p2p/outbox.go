package p2p

import "sync"

// outboxCapacity is the bound on a peer's outbound queue (spec.md §5's
// resource bound: per-peer outbound queue ≤ 256 messages).
const outboxCapacity = 256

// lowPriority marks announcements as droppable under back-pressure; replies
// (Blocks, Transactions, Pong, Height, Peers) are never dropped, per
// spec.md §4.5: "drop the oldest low-priority announcement, never a reply."
func lowPriority(k Kind) bool {
	switch k {
	case KindNewBlockHashes, KindNewTransactionHashes, KindPing:
		return true
	default:
		return false
	}
}

type queuedFrame struct {
	frame frame
	low   bool
}

// outbox is a per-peer bounded send queue. No channel-based queue can
// express "evict a specific already-queued low-priority item on overflow",
// so this is a small hand-rolled slice-backed queue guarded by a mutex, with
// a condition variable to wake the drain goroutine.
type outbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []queuedFrame
	closed bool
}

func newOutbox() *outbox {
	o := &outbox{}
	o.cond = sync.NewCond(&o.mu)
	return o
}

// enqueue adds f to the queue, evicting the oldest low-priority entry if the
// queue is full. If the queue is full of undroppable replies and f is
// itself low-priority, f is dropped instead of growing the queue unbounded.
func (o *outbox) enqueue(f frame) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}

	qf := queuedFrame{frame: f, low: lowPriority(f.kind)}

	if len(o.items) >= outboxCapacity {
		if idx := o.oldestLowPriorityLocked(); idx >= 0 {
			o.items = append(o.items[:idx], o.items[idx+1:]...)
		} else if qf.low {
			return
		}
	}

	o.items = append(o.items, qf)
	o.cond.Signal()
}

func (o *outbox) oldestLowPriorityLocked() int {
	for i, it := range o.items {
		if it.low {
			return i
		}
	}
	return -1
}

// dequeue blocks until an item is available or the outbox is closed.
func (o *outbox) dequeue() (frame, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for len(o.items) == 0 && !o.closed {
		o.cond.Wait()
	}
	if len(o.items) == 0 {
		return frame{}, false
	}

	f := o.items[0].frame
	o.items = o.items[1:]
	return f, true
}

// close wakes any blocked dequeue and prevents further enqueues.
func (o *outbox) close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.cond.Broadcast()
}
