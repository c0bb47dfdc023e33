// Package timerq is the ordered deadline set backing the timer engine.
// Hubris itself is small enough that a linear scan of the
// task table on every tick is free; at the task counts a hosted
// simulation wants to exercise (and to give Tick() sublinear cost as the
// task count grows) we keep an explicit ordered set of (deadline, task)
// pairs using github.com/google/btree, so Tick only visits tasks whose
// deadline has actually arrived.
package timerq

import (
	"github.com/google/btree"

	"github.com/oxidecomputer/hubris-go/internal/abi"
)

// Entry is one armed deadline.
type Entry struct {
	Deadline uint64
	Task     abi.TaskIndex
}

// Less implements btree.Item. Ties are broken by task index so that two
// tasks sharing a deadline have a stable iteration order.
func (e Entry) Less(than btree.Item) bool {
	o := than.(Entry)
	if e.Deadline != o.Deadline {
		return e.Deadline < o.Deadline
	}
	return e.Task < o.Task
}

// Queue is a set of at most one armed Entry per task, ordered by
// deadline.
type Queue struct {
	tree *btree.BTree
	byTask map[abi.TaskIndex]Entry
}

// New returns an empty Queue.
func New() *Queue {
	return &Queue{
		tree:   btree.New(16),
		byTask: make(map[abi.TaskIndex]Entry),
	}
}

// Arm (re)arms task's deadline, replacing any previously armed deadline
// for that task.
func (q *Queue) Arm(task abi.TaskIndex, deadline uint64) {
	q.Disarm(task)
	e := Entry{Deadline: deadline, Task: task}
	q.tree.ReplaceOrInsert(e)
	q.byTask[task] = e
}

// Disarm removes task's armed deadline, if any.
func (q *Queue) Disarm(task abi.TaskIndex) {
	if e, ok := q.byTask[task]; ok {
		q.tree.Delete(e)
		delete(q.byTask, task)
	}
}

// Armed reports whether task currently has an armed deadline, and what it
// is.
func (q *Queue) Armed(task abi.TaskIndex) (uint64, bool) {
	e, ok := q.byTask[task]
	return e.Deadline, ok
}

// Due removes and returns every entry whose deadline is <= now, in
// deadline order.
func (q *Queue) Due(now uint64) []Entry {
	var due []Entry
	for {
		min := q.tree.Min()
		if min == nil {
			break
		}
		e := min.(Entry)
		if e.Deadline > now {
			break
		}
		due = append(due, e)
		q.tree.Delete(e)
		delete(q.byTask, e.Task)
	}
	return due
}
