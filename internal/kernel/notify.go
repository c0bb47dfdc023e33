package kernel

import "github.com/oxidecomputer/hubris-go/internal/abi"

// Post is the post(target, bits) syscall. post from userspace is always
// permitted: it does not reveal any information the sender could not
// already obtain, so unlike send there is no dead-code path to return to
// the caller other than a plain task-index validation.
func (k *Kernel) Post(target abi.TaskIndex, bits uint32) abi.UsageError {
	t := k.taskAt(target)
	if t == nil {
		return abi.TaskOutOfRange
	}
	k.post(t, bits)
	return abi.UsageOK
}

// post is the internal primitive shared by Post, the timer engine, and
// IRQ routing: OR bits into target's pending set, and if target is
// blocked in an open or matching-closed recv with any of those bits
// enabled, wake it immediately with a synthetic kernel-origin message.
func (k *Kernel) post(target *TCB, bits uint32) {
	target.Pending |= bits

	if target.State.Kind != InRecv {
		return
	}
	acceptsNotifications := target.State.Open || target.State.SpecificSender == abi.KernelTaskIndex
	if !acceptsNotifications {
		return
	}
	matched := target.Pending & target.State.Enabled
	if matched == 0 {
		return
	}
	target.Pending &^= matched
	k.transition(target, RunnableState())
	target.wakeRecv(RecvOutcome{
		Status:    RecvOK,
		Sender:    abi.KernelID,
		Operation: matched,
	})
}
