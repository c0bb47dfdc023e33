package kernel

import "github.com/oxidecomputer/hubris-go/internal/abi"

// HandleIRQ is the hardware interrupt entry point for an architecture
// port; the simulated port in internal/arch/sim has no interrupt source
// and does not call it. It masks the interrupt at the (simulated)
// controller, posts the configured notification bits to the owning task,
// and reports whether a deferred context switch should be pended: true if
// the owner is now higher priority (numerically lower) than the task
// that was running when the interrupt landed.
func (k *Kernel) HandleIRQ(irq uint32, runningPriority int) (needsSwitch bool) {
	ownerIdx, ok := k.irqOwner[irq]
	if !ok {
		k.Log.WithField("irq", irq).Warn("interrupt with no owner in static routing table")
		return false
	}
	owner := k.taskAt(ownerIdx)
	if owner == nil {
		return false
	}
	k.irqEnabled[irq] = false
	k.post(owner, k.irqBits[irq])
	return owner.State.Kind == Runnable && int(owner.Descriptor.Priority) < runningPriority
}

// IRQControl implements the IrqControl syscall. A task may only toggle
// IRQs it owns per the static table built at New(); any other mask bit
// faults the caller with IllegalTask, since this is attempting to control
// hardware the task was never granted.
func (k *Kernel) IRQControl(t *TCB, irq uint32, enable bool) abi.UsageError {
	ownerIdx, ok := k.irqOwner[irq]
	if !ok || ownerIdx != t.Index {
		k.Fault(t, abi.Fault{Source: abi.FaultSyscallUsage, Usage: abi.IllegalTask})
		return abi.IllegalTask
	}
	k.irqEnabled[irq] = enable
	return abi.UsageOK
}

// IRQEnabled reports whether irq is currently unmasked at the
// (simulated) interrupt controller. Nothing in internal/arch/sim consults
// it.
func (k *Kernel) IRQEnabled(irq uint32) bool { return k.irqEnabled[irq] }
