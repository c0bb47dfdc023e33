// Package supervisor layers a restart backoff policy on top of
// internal/kernel's bare restart_task kipc operation. The kernel itself
// has no opinion about how often a crash-looping task should be
// restarted; a real Hubris supervisor task is free to implement whatever
// policy it likes, and this package is one such policy, built the way
// runsc waits out a slow-to-exit sandbox with a backoff-driven retry
// (runsc/sandbox/sandbox.go's waitForStopped) rather than busy polling.
package supervisor

import (
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"

	"github.com/oxidecomputer/hubris-go/internal/abi"
	"github.com/oxidecomputer/hubris-go/internal/kernel"
)

// NewBackOff constructs a fresh per-task backoff.BackOff. Tests substitute
// a policy with a short InitialInterval so a simulated boot-loop doesn't
// have to wait out real wall-clock delay.
type NewBackOff func() backoff.BackOff

// DefaultBackOff never gives up on a task (MaxElapsedTime of 0): restarting
// crashed tasks is the supervisor's job for the life of the image, so
// unlike runsc's bounded wait for sandbox teardown, there is no deadline
// after which the Watcher stops trying.
func DefaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// watch is the per-task backoff state the Watcher keeps while a task is
// in a restart-retry cycle; it is dropped as soon as the task is observed
// healthy.
type watch struct {
	backoff  backoff.BackOff
	eligible uint64
}

// Watcher restarts faulted tasks, deferring a repeat restart of a task
// that keeps faulting by however long its backoff.BackOff says to wait,
// expressed in kernel ticks rather than wall-clock sleep since
// internal/kernel's tick counter is the only clock this process has.
type Watcher struct {
	k       *kernel.Kernel
	log     *logrus.Logger
	newBack NewBackOff
	watches map[abi.TaskIndex]*watch
}

// New builds a Watcher. newBack may be nil to use DefaultBackOff.
func New(k *kernel.Kernel, log *logrus.Logger, newBack NewBackOff) *Watcher {
	if newBack == nil {
		newBack = func() backoff.BackOff { return DefaultBackOff() }
	}
	return &Watcher{k: k, log: log, newBack: newBack, watches: make(map[abi.TaskIndex]*watch)}
}

// Sweep restarts every faulted, non-supervisor task whose backoff has
// elapsed, and clears backoff state for any task observed healthy. It is
// meant to be called by the supervisor's own driving loop (the simulated
// supervisor TaskFunc, or a test) each time the supervisor wakes —
// whether because of the fault notification bit or its own periodic
// timer; exactly when the supervisor acts is left up to it.
func (w *Watcher) Sweep() {
	now := w.k.Now()
	sup := w.k.Supervisor()
	for i := 0; i < w.k.NumTasks(); i++ {
		idx := abi.TaskIndex(i)
		if idx == sup {
			continue
		}
		status, errCode := w.k.ReadTaskStatus(idx)
		if errCode != abi.UsageOK || status.Kind != kernel.Faulted {
			delete(w.watches, idx)
			continue
		}

		wt, ok := w.watches[idx]
		if !ok {
			wt = &watch{backoff: w.newBack()}
			w.watches[idx] = wt
		} else if now < wt.eligible {
			continue
		}

		if w.log != nil {
			w.log.WithField("task", idx).WithField("fault", status.Fault.String()).Info("supervisor: restarting faulted task")
		}
		w.k.RestartTask(idx, true)
		wt.eligible = now + w.ticksFor(wt.backoff.NextBackOff())
	}
}

func (w *Watcher) ticksFor(d backoffDuration) uint64 {
	period := w.k.Image().TickPeriod
	if period <= 0 || d <= 0 {
		return 1
	}
	ticks := uint64(d) / uint64(period)
	if ticks == 0 {
		ticks = 1
	}
	return ticks
}

// backoffDuration is an alias so ticksFor reads naturally; backoff.BackOff
// returns a plain time.Duration (backoff.Stop is a sentinel negative
// value meaning "give up", which DefaultBackOff's zero MaxElapsedTime
// never produces).
type backoffDuration = time.Duration
