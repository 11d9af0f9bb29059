package state

import "container/heap"

// ScheduledChange is a topology change that fires Time scaled units after the simulation starts.
type ScheduledChange struct {
	ChangeCfg
	order int
}

// ChangeQueue is a min-heap of changes ordered by fire time, then by the order they were added.
type ChangeQueue struct {
	items []ScheduledChange
	seq   int
}

func NewChangeQueue(changes []ChangeCfg) *ChangeQueue {
	q := &ChangeQueue{}
	for _, c := range changes {
		q.Add(c)
	}
	return q
}

func (q *ChangeQueue) Len() int { return len(q.items) }

func (q *ChangeQueue) Less(i, j int) bool {
	if q.items[i].Time != q.items[j].Time {
		return q.items[i].Time < q.items[j].Time
	}
	return q.items[i].order < q.items[j].order
}

func (q *ChangeQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *ChangeQueue) Push(x any) {
	q.items = append(q.items, x.(ScheduledChange))
}

func (q *ChangeQueue) Pop() any {
	n := len(q.items)
	c := q.items[n-1]
	q.items = q.items[:n-1]
	return c
}

func (q *ChangeQueue) Add(c ChangeCfg) {
	heap.Push(q, ScheduledChange{ChangeCfg: c, order: q.seq})
	q.seq++
}

// Next removes and returns the earliest change.
func (q *ChangeQueue) Next() (ScheduledChange, bool) {
	if q.Len() == 0 {
		return ScheduledChange{}, false
	}
	return heap.Pop(q).(ScheduledChange), true
}

// Peek returns the earliest change without removing it.
func (q *ChangeQueue) Peek() (ScheduledChange, bool) {
	if q.Len() == 0 {
		return ScheduledChange{}, false
	}
	return q.items[0], true
}
