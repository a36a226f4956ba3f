package websocket

import (
	"log"
	"sync"

	"github.com/google/uuid"
)

// OverflowPolicy selects what Enqueue does once a recipient's buffer
// is full.
type OverflowPolicy string

const (
	DropOldest OverflowPolicy = "drop_oldest"
	Reject     OverflowPolicy = "reject"
)

const DefaultMaxPendingPerUser = 1000

// PendingQueue buffers messages for recipients that had no live
// connection at send time. Everything here is process-local and lost
// on restart.
type PendingQueue struct {
	mu         sync.Mutex
	maxPerUser int
	policy     OverflowPolicy
	queued     map[uuid.UUID][]MessageEvent
}

func NewPendingQueue(maxPerUser int, policy OverflowPolicy) *PendingQueue {
	if maxPerUser <= 0 {
		maxPerUser = DefaultMaxPendingPerUser
	}
	if policy != Reject {
		policy = DropOldest
	}
	return &PendingQueue{
		maxPerUser: maxPerUser,
		policy:     policy,
		queued:     make(map[uuid.UUID][]MessageEvent),
	}
}

// Enqueue appends to the recipient's buffer in send order. Overflow is
// never silent: whichever policy applies, the outcome is logged.
func (q *PendingQueue) Enqueue(recipientID uuid.UUID, ev MessageEvent) {
	q.mu.Lock()
	defer q.mu.Unlock()

	buf := q.queued[recipientID]
	if len(buf) >= q.maxPerUser {
		if q.policy == Reject {
			log.Printf("Pending queue full for user %s, rejecting message %s", recipientID, ev.ID)
			return
		}
		log.Printf("Pending queue full for user %s, dropping oldest message %s", recipientID, buf[0].ID)
		buf = buf[1:]
	}
	q.queued[recipientID] = append(buf, ev)
}

// Drain hands the recipient's buffered messages to deliver in FIFO
// order. The buffer is detached under the lock before delivery starts,
// so a message can never be replayed by a second drain.
func (q *PendingQueue) Drain(recipientID uuid.UUID, deliver func(MessageEvent)) {
	q.mu.Lock()
	buf := q.queued[recipientID]
	delete(q.queued, recipientID)
	q.mu.Unlock()

	for _, ev := range buf {
		deliver(ev)
	}
}

// Depth reports the total number of buffered messages across all
// recipients.
func (q *PendingQueue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, buf := range q.queued {
		n += len(buf)
	}
	return n
}
