package scheduler

import (
	"container/heap"
	"math/rand"
)

// inputQueue is a priority queue over *Input ordered by
// (priority DESC, (order_by_timestamp ? next_timestamp-base_timestamp ASC : 0),
// queue_counter ASC), the total order of §4.2. It backs both the ready
// queue and the unscheduled queue; both are guarded by the scheduler's
// sched_lock, never by the per-input locks.
//
// It implements container/heap.Interface the way the teacher's
// sim/cluster/event_heap.go implements EventHeap, generalized to support
// the scan-and-requeue semantics pop() needs for blocked/bound entries.
type inputQueue struct {
	items   []*Input
	counter *uint64
}

func newInputQueue(counter *uint64) *inputQueue {
	q := &inputQueue{counter: counter}
	heap.Init(q)
	return q
}

func (q *inputQueue) Len() int { return len(q.items) }

func (q *inputQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.priority != b.priority {
		return a.priority > b.priority
	}
	if a.orderByTimestamp || b.orderByTimestamp {
		ak, bk := a.nextTimestamp-a.baseTimestamp, b.nextTimestamp-b.baseTimestamp
		if ak != bk {
			return ak < bk
		}
	}
	return a.queueCounter < b.queueCounter
}

func (q *inputQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *inputQueue) Push(x any) { q.items = append(q.items, x.(*Input)) }

func (q *inputQueue) Pop() any {
	n := len(q.items)
	item := q.items[n-1]
	q.items[n-1] = nil
	q.items = q.items[:n-1]
	return item
}

// push inserts in, assigning it a fresh FIFO tie-break counter.
func (q *inputQueue) push(in *Input) {
	*q.counter++
	in.queueCounter = *q.counter
	heap.Push(q, in)
}

// popTop removes and returns the highest-priority entry with no regard for
// binding or blocked status.
func (q *inputQueue) popTop() (*Input, bool) {
	if q.Len() == 0 {
		return nil, false
	}
	return heap.Pop(q).(*Input), true
}

// peekTop returns the highest-priority entry without removing it.
func (q *inputQueue) peekTop() (*Input, bool) {
	if q.Len() == 0 {
		return nil, false
	}
	return q.items[0], true
}

func (q *inputQueue) indexOf(in *Input) int {
	for i, x := range q.items {
		if x == in {
			return i
		}
	}
	return -1
}

// contains reports whether in is currently queued.
func (q *inputQueue) contains(in *Input) bool { return q.indexOf(in) >= 0 }

// erase removes in from the queue if present, returning whether it was
// found.
func (q *inputQueue) erase(in *Input) bool {
	idx := q.indexOf(in)
	if idx < 0 {
		return false
	}
	heap.Remove(q, idx)
	return true
}

// randomEntry pops a uniformly random eligible (bound-compatible) entry,
// used when Options.RandomizeNextInput is set.
func (q *inputQueue) randomEntry(outputIdx int, rng *rand.Rand) (*Input, bool) {
	var eligible []int
	for i, in := range q.items {
		if in.AllowsOutput(outputIdx) {
			eligible = append(eligible, i)
		}
	}
	if len(eligible) == 0 {
		return nil, false
	}
	idx := eligible[rng.Intn(len(eligible))]
	item := q.items[idx]
	heap.Remove(q, idx)
	return item, true
}

// popEligible scans the queue in priority order for an entry that is bound-
// compatible with outputIdx and not currently blocked (blocked_time elapsed
// or unset). Bound-incompatible entries stay in the queue with their
// queue_counter unchanged; still-blocked entries stay in the queue but are
// re-stamped with a fresh queue_counter, which moves them behind every
// other entry of equal priority (§4.2).
//
// now is the requesting output's current simulated time, used to decide
// whether a blocked entry's interval has elapsed.
func (q *inputQueue) popEligible(outputIdx int, now int64) (*Input, bool) {
	if q.Len() == 0 {
		return nil, false
	}
	// Drain the heap into priority order, partitioning into eligible vs
	// deferred (bound-excluded) or blocked. Deferred entries are re-pushed
	// with their queue_counter kept; blocked ones are re-stamped.
	var deferred []*Input
	var blocked []*Input
	var picked *Input
	for q.Len() > 0 {
		in, _ := heap.Pop(q).(*Input)
		if !in.AllowsOutput(outputIdx) {
			deferred = append(deferred, in)
			continue
		}
		if in.blockedTime > 0 {
			if now-in.blockedStartTime >= in.blockedTime {
				in.blockedTime = 0
				in.blockedStartTime = 0
			} else {
				blocked = append(blocked, in)
				continue
			}
		}
		picked = in
		break
	}
	for _, in := range deferred {
		heap.Push(q, in)
	}
	for _, in := range blocked {
		q.push(in)
	}
	if picked == nil {
		return nil, false
	}
	return picked, true
}

// hasEligible reports whether any bound-compatible, non-blocked entry
// exists without mutating the queue.
func (q *inputQueue) hasEligible(outputIdx int, now int64) bool {
	for _, in := range q.items {
		if !in.AllowsOutput(outputIdx) {
			continue
		}
		if in.blockedTime > 0 && now-in.blockedStartTime < in.blockedTime {
			continue
		}
		return true
	}
	return false
}

// all returns every queued input, for bulk operations like the hang-
// avoidance flush (§4.9).
func (q *inputQueue) all() []*Input { return q.items }

// drainAll removes and returns every queued input.
func (q *inputQueue) drainAll() []*Input {
	out := q.items
	q.items = nil
	return out
}
