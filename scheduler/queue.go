package scheduler

import (
	"container/heap"

	"github.com/jonwraymond/taskops/task"
)

type item struct {
	task  *task.Task
	seq   uint64
	index int
}

// taskHeap orders by priority, highest first, then by sequence number.
type taskHeap []*item

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].task.Priority != h[j].task.Priority {
		return h[i].task.Priority > h[j].task.Priority
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	it := x.(*item)
	it.index = len(*h)
	*h = append(*h, it)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*h = old[:n-1]
	return it
}

// queue is the pending-task priority queue. It is not safe for concurrent
// use; the scheduler guards it with its mutex.
type queue struct {
	h     taskHeap
	byID  map[string]*item
	tiers map[task.Priority]int
}

func newQueue() *queue {
	return &queue{
		byID:  make(map[string]*item),
		tiers: make(map[task.Priority]int),
	}
}

func (q *queue) push(t *task.Task, seq uint64) {
	it := &item{task: t, seq: seq}
	heap.Push(&q.h, it)
	q.byID[t.ID] = it
	q.tiers[t.Priority]++
}

func (q *queue) pop() (*item, bool) {
	if q.h.Len() == 0 {
		return nil, false
	}
	it := heap.Pop(&q.h).(*item)
	q.forget(it)
	return it, true
}

func (q *queue) remove(id string) (*task.Task, bool) {
	it, ok := q.byID[id]
	if !ok {
		return nil, false
	}
	heap.Remove(&q.h, it.index)
	q.forget(it)
	return it.task, true
}

// drain empties the queue and returns its tasks in dispatch order.
func (q *queue) drain() []*task.Task {
	tasks := make([]*task.Task, 0, q.h.Len())
	for {
		it, ok := q.pop()
		if !ok {
			return tasks
		}
		tasks = append(tasks, it.task)
	}
}

func (q *queue) forget(it *item) {
	delete(q.byID, it.task.ID)
	q.tiers[it.task.Priority]--
}

func (q *queue) len() int {
	return q.h.Len()
}

// depths returns the queued count of every tier.
func (q *queue) depths() map[task.Priority]int {
	out := make(map[task.Priority]int, len(task.Priorities))
	for _, p := range task.Priorities {
		out[p] = q.tiers[p]
	}
	return out
}
