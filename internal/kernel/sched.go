package kernel

import "github.com/oxidecomputer/hubris-go/internal/abi"

// Pick selects the runnable task with numerically lowest priority value,
// scanning starting at the hint index (wrapping around the table) so
// that ties are broken in a stable round-robin order rather than always
// favoring the lowest task index. It returns ok=false only if no task is
// runnable, which a correctly configured image should never reach (there
// is always at least an idle or supervisor task runnable).
func (k *Kernel) Pick(hint abi.TaskIndex) (abi.TaskIndex, bool) {
	n := len(k.tasks)
	if n == 0 {
		return 0, false
	}
	start := int(hint) % n
	bestPriority := -1
	var best abi.TaskIndex
	found := false
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		t := k.tasks[idx]
		if t.State.Kind != Runnable {
			continue
		}
		p := int(t.Descriptor.Priority)
		if !found || p < bestPriority {
			bestPriority = p
			best = abi.TaskIndex(idx)
			found = true
		}
	}
	return best, found
}

// Reschedule runs the scheduler using the previously running task as the
// tie-break hint and records the result as the new hint for next time.
// Callers that drive a real trap loop (internal/arch/sim) call this after
// every kernel entry that might have changed runnability.
func (k *Kernel) Reschedule() (abi.TaskIndex, bool) {
	next, ok := k.Pick(k.current)
	if ok {
		k.current = next
	}
	return next, ok
}

// CurrentHint returns the scheduler's tie-break hint (the task that was
// selected, or attempted, last).
func (k *Kernel) CurrentHint() abi.TaskIndex { return k.current }
