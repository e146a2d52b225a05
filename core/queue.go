package core

import (
	"container/heap"

	"github.com/signalsfoundry/logistics-simulator/model"
)

// scheduled is one pending entry on the timeline. Scenario events and
// sub-events scheduled by handlers share the same ordering.
type scheduled struct {
	at       float64 // absolute days since the scenario start
	priority int
	seq      uint64

	mission int
	event   model.Event

	// implicit marks demand events generated from demand models. They are
	// recorded only when some demand is left unmet.
	implicit bool
	// skipRemoved lets transport arrivals ignore elements removed in transit.
	skipRemoved bool
	// step is run instead of dispatching event for internal bookkeeping
	// entries such as mission starts and state restores.
	step func(r *run)
}

// before reports whether a is ordered strictly before b: time first, then
// priority (lower first), then insertion sequence.
func (a *scheduled) before(b *scheduled) bool {
	if a.at != b.at {
		return a.at < b.at
	}
	if a.priority != b.priority {
		return a.priority < b.priority
	}
	return a.seq < b.seq
}

type eventHeap []*scheduled

func (h eventHeap) Len() int           { return len(h) }
func (h eventHeap) Less(i, j int) bool { return h[i].before(h[j]) }
func (h eventHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) { *h = append(*h, x.(*scheduled)) }

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// eventQueue hands out a monotonically increasing sequence number to every
// entry so equal time and priority pop in scheduling order.
type eventQueue struct {
	items eventHeap
	next  uint64
}

func (q *eventQueue) push(s *scheduled) {
	s.seq = q.next
	q.next++
	heap.Push(&q.items, s)
}

func (q *eventQueue) pop() *scheduled {
	if len(q.items) == 0 {
		return nil
	}
	return heap.Pop(&q.items).(*scheduled)
}

func (q *eventQueue) len() int { return len(q.items) }
