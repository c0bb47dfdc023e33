package kernel

import "github.com/oxidecomputer/hubris-go/internal/abi"

// Fault converts t to the Faulted state, recording f and the scheduler
// state t held at the instant of the fault. Faulting the currently
// running task is not fatal to the kernel: the scheduler simply picks
// someone else on the next Reschedule.
//
// Any task that was blocked waiting on t — either still queued to send to
// it, or already delivered and waiting for it to reply — is woken with a
// dead-code outcome using t's current generation, rather than left
// blocked forever until a human restarts t. See DESIGN.md.
func (k *Kernel) Fault(t *TCB, f abi.Fault) {
	if t.State.Kind == Faulted {
		return
	}
	prior := t.State
	t.OutMessage = nil
	t.State = SchedState{Kind: Faulted, Fault: &f, Prior: &prior}
	t.LastFault = &f
	k.timers.Disarm(t.Index)

	k.releaseWaitersOf(t)

	k.Log.WithField("task", t.ID().String()).WithField("fault", f.String()).Warn("task faulted")

	if t.Index != k.Supervisor() {
		k.notifySupervisorFault(t)
	}
}

// releaseWaitersOf wakes, with a dead-code outcome, every other task that
// was blocked because of t: still queued in InSend{target: t}, or already
// delivered and now in InReply{peer: t} awaiting t's reply.
func (k *Kernel) releaseWaitersOf(t *TCB) {
	dead := DeadStatus(t.Generation)
	for _, u := range k.tasks {
		if u == t {
			continue
		}
		switch {
		case u.State.Kind == InSend && u.State.Target == t.Index:
			u.OutMessage = nil
			k.transition(u, RunnableState())
			u.wakeSend(SendOutcome{Dead: true, DeadGen: t.Generation, Code: dead})
		case u.State.Kind == InReply && u.State.ReplyPeer == t.Index:
			u.OutMessage = nil
			k.transition(u, RunnableState())
			u.wakeSend(SendOutcome{Dead: true, DeadGen: t.Generation, Code: dead})
		}
	}
}

// notifySupervisorFault sets the image-configured fault notification bit
// on the supervisor: faults on non-supervisor tasks also cause a
// configurable notification bit to be set on the supervisor. This
// happens even if the supervisor is itself Faulted — see DESIGN.md's
// resolution of the corresponding Open Question — the bit simply
// accumulates in Pending until someone restarts the supervisor and it
// next recvs.
func (k *Kernel) notifySupervisorFault(faulted *TCB) {
	sup := k.taskAt(k.Supervisor())
	if sup == nil {
		return
	}
	k.post(sup, k.image.SupervisorFaultBit)
}

// Panic implements the Panic syscall: a task aborting itself. It takes
// no message argument, and the resulting fault record carries none
// (source Panic has no payload field); the only log line is Fault's own.
func (k *Kernel) Panic(t *TCB) {
	k.Fault(t, abi.Fault{Source: abi.FaultPanic})
}

// Restart moves a Faulted (or Stopped) task back to Runnable (or
// Stopped, if startImmediately is false), advancing its generation. This
// implements both the supervisor's restart_task kipc operation and the
// "start=false" boot policy described in DESIGN.md: regardless of why a
// task is not running, restarting it always goes through reinitialize.
func (k *Kernel) Restart(t *TCB, startImmediately bool) {
	k.reinitialize(t, startImmediately)
	k.Log.WithField("task", t.Descriptor.Name).WithField("generation", t.Generation).Info("task restarted")
}
