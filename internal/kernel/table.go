package kernel

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/oxidecomputer/hubris-go/internal/abi"
	"github.com/oxidecomputer/hubris-go/internal/config"
	"github.com/oxidecomputer/hubris-go/internal/kernel/timerq"
)

// poisonWord is the recognizable pattern reinitialize stores in a task's
// first saved register slot (Regs.R[0]). No stack memory is written with
// it.
const poisonWord uint32 = 0xdeadbeef

// Kernel owns the single mutable task table and all scheduler-adjacent
// state: the tick counter, the armed-timer set, and the IRQ routing
// table. There is exactly one Kernel per booted image.
//
// The table is not a process-wide singleton; callers reach it only
// through a *Kernel value, held by whichever goroutine the architecture
// port's token handoff has currently granted the run token to. There is
// deliberately no internal locking: every exported method here assumes
// the caller already holds exclusive access, the same "entered only
// through traps, runs to completion" discipline the real kernel has.
type Kernel struct {
	Log *logrus.Logger

	image *config.Image

	tasks []*TCB

	tick   uint64
	timers *timerq.Queue

	irqOwner   map[uint32]abi.TaskIndex
	irqBits    map[uint32]uint32
	irqEnabled map[uint32]bool

	// current is the index of the task that was running (or about to
	// run) before the current kernel entry; it seeds the scheduler's
	// tie-break hint.
	current abi.TaskIndex
}

// New builds a Kernel from a validated configuration image. It does not
// start any task; call Boot for that.
func New(log *logrus.Logger, image *config.Image) *Kernel {
	k := &Kernel{
		Log:        log,
		image:      image,
		tasks:      make([]*TCB, len(image.Tasks)),
		timers:     timerq.New(),
		irqOwner:   make(map[uint32]abi.TaskIndex),
		irqBits:    make(map[uint32]uint32),
		irqEnabled: make(map[uint32]bool),
	}
	for i, desc := range image.Tasks {
		t := &TCB{
			Index:      abi.TaskIndex(i),
			Generation: 0,
			Descriptor: desc,
			Regions:    append([]int(nil), desc.Regions...),
		}
		k.tasks[i] = t
		for irq, bits := range desc.Interrupts {
			k.irqOwner[irq] = t.Index
			k.irqBits[irq] = bits
			k.irqEnabled[irq] = false
		}
	}
	return k
}

// Image returns the configuration the kernel was built from.
func (k *Kernel) Image() *config.Image { return k.image }

// NumTasks returns the number of tasks in the static table.
func (k *Kernel) NumTasks() int { return len(k.tasks) }

// Supervisor returns the supervisor task's current index (conventionally
// 0).
func (k *Kernel) Supervisor() abi.TaskIndex { return k.image.Supervisor }

// taskAt returns the TCB at idx, or nil if idx is out of range. This is
// the only place table.go reads k.tasks by index, so that a bounds
// change only has to be reviewed in one place.
func (k *Kernel) taskAt(idx abi.TaskIndex) *TCB {
	if int(idx) < 0 || int(idx) >= len(k.tasks) {
		return nil
	}
	return k.tasks[idx]
}

// TaskAt is the exported form of taskAt, for callers outside the package
// (internal/arch/sim's driver, internal/supervisor) that need a live TCB
// reference to drive a task's goroutine or watch its state directly.
func (k *Kernel) TaskAt(idx abi.TaskIndex) *TCB { return k.taskAt(idx) }

// lookup resolves a TaskID against the table, distinguishing two
// separate reasons it might not name a live task:
//
//   - outOfRange: id.Index names no slot at all. This is kernel-detected
//     misuse of the syscall ABI, not a statement about any particular
//     task's liveness — callers that take a TaskID from a task (ipc.go's
//     Send/Recv/Reply/ReplyFault) should fault the caller with
//     abi.TaskOutOfRange rather than returning a dead-code status.
//   - ok==false with outOfRange==false: id.Index is valid but
//     id.Generation is stale, i.e. the slot has since been restarted.
//     currentGen carries the slot's live generation so the caller can
//     build a dead-code status.
//
// borrow.go's lender lookups don't need the distinction (both read back
// as BorrowDefect) and can discard outOfRange.
func (k *Kernel) lookup(id abi.TaskID) (tcb *TCB, currentGen abi.Generation, outOfRange bool, ok bool) {
	t := k.taskAt(id.Index)
	if t == nil {
		return nil, 0, true, false
	}
	if t.Generation != id.Generation {
		return nil, t.Generation, false, false
	}
	return t, t.Generation, false, true
}

// Boot reinitializes every task per its start flag: start=true tasks
// become Runnable, start=false tasks become Stopped. See DESIGN.md for
// the resolution of the §9 open question on start=false semantics.
func (k *Kernel) Boot() {
	for _, t := range k.tasks {
		k.reinitialize(t, t.Descriptor.Start)
		k.Log.WithField("task", t.Descriptor.Name).WithField("runnable", t.Descriptor.Start).Info("boot: task initialized")
	}
	k.current = k.Supervisor()
}

// reinitialize rebuilds a TCB's saved registers (initial stack pointer,
// exception-return cookie, poisonWord in R[0]), clears its pending bits,
// timer, in-flight message and pending outcomes, advances the generation
// (skipping the reserved kernel sentinel, see abi.KernelGeneration), and
// sets scheduler state per makeRunnable. It does not touch the task's
// stack memory, and the task's entry point is not recorded in Regs.
func (k *Kernel) reinitialize(t *TCB, makeRunnable bool) {
	t.Generation++
	if t.Generation == abi.KernelGeneration {
		t.Generation++
	}
	t.Regs = Regs{SP: t.Descriptor.InitialStack, ExcReturn: 0xFFFFFFFD}
	t.Regs.R[0] = poisonWord
	t.Pending = 0
	t.TimerDeadline = nil
	t.TimerBits = 0
	t.OutMessage = nil
	t.PendingSend = nil
	t.PendingRecv = nil
	t.WakeCh = nil
	k.timers.Disarm(t.Index)
	if makeRunnable {
		t.State = RunnableState()
	} else {
		t.State = StoppedState()
	}
}

// transition asserts that moving t from its current Kind to next is a
// valid scheduler-state edge, then performs the move. An invalid edge is
// a kernel bug, not a task fault: it means internal/kernel itself has a
// defect, so it panics rather than trying to degrade gracefully — the
// kernel panics only on detected invariant violations of its own data
// structures.
func (k *Kernel) transition(t *TCB, next SchedState) {
	if !validEdge(t.State.Kind, next.Kind) {
		panic(fmt.Sprintf("kernel: invalid state transition for %s: %s -> %s", t.ID(), t.State.Kind, next.Kind))
	}
	t.State = next
}

func validEdge(from, to SchedKind) bool {
	if to == Faulted {
		return from != Faulted
	}
	switch from {
	case Runnable:
		return to == InSend || to == InRecv || to == Runnable
	case InSend:
		// Runnable: released with a dead-code outcome when the target
		// faults (releaseWaitersOf).
		return to == InReply || to == Runnable
	case InReply:
		return to == Runnable
	case InRecv:
		return to == Runnable
	case Stopped:
		return to == Runnable
	case Faulted:
		return to == Runnable
	default:
		return false
	}
}
