package kernel

import "github.com/oxidecomputer/hubris-go/internal/abi"

// Send implements the send() operation. The caller must be Runnable.
// Outcomes, in order of precedence:
//
//   - target's index is out of range: caller is faulted
//     (SyscallUsage(TaskOutOfRange)) and no SendOutcome is produced.
//   - target names a dead or faulted task: returns immediately with a
//     dead-code SendOutcome; caller remains Runnable.
//   - target is the supervisor: serviced synchronously by kipc.go,
//     without ever blocking the caller; see dispatchKipc.
//   - target is a malformed lease set: caller is faulted (SyscallUsage)
//     and no SendOutcome is produced.
//   - otherwise the caller blocks (InSend or, if delivery is immediate,
//     InReply) and blocked==true; the eventual SendOutcome arrives later
//     via caller.PendingSend.
func (k *Kernel) Send(caller *TCB, target abi.TaskID, operation uint32, out []byte, inCap int, leases []Lease) (outcome SendOutcome, blocked bool) {
	tgt, gen, outOfRange, ok := k.lookup(target)
	if outOfRange {
		k.Fault(caller, abi.Fault{Source: abi.FaultSyscallUsage, Usage: abi.TaskOutOfRange})
		return SendOutcome{}, false
	}
	if !ok {
		return SendOutcome{Dead: true, DeadGen: gen, Code: DeadStatus(gen)}, false
	}
	if tgt.State.Kind == Faulted {
		return SendOutcome{Dead: true, DeadGen: tgt.Generation, Code: DeadStatus(tgt.Generation)}, false
	}

	if tgt.Index == k.Supervisor() {
		return k.dispatchKipc(caller, operation, out), false
	}

	if !k.validateLeases(caller, leases) {
		k.Fault(caller, abi.Fault{Source: abi.FaultSyscallUsage, Usage: abi.LeaseOutOfRange})
		return SendOutcome{}, false
	}

	msg := &Message{Operation: operation, Out: out, InCap: inCap, Leases: leases}
	caller.OutMessage = msg

	if tgt.State.Kind == InRecv && (tgt.State.Open || tgt.State.SpecificSender == caller.Index) {
		k.deliver(caller, tgt, msg)
		k.transition(caller, SchedState{Kind: InReply, ReplyPeer: tgt.Index})
		return SendOutcome{}, true
	}

	k.transition(caller, SchedState{Kind: InSend, Target: tgt.Index})
	return SendOutcome{}, true
}

// deliver copies msg into tgt's receive buffer (conceptually — the
// simulator owns the actual bytes) and wakes tgt with the resulting
// RecvOutcome. It does not touch caller's state; the caller does that.
func (k *Kernel) deliver(sender, tgt *TCB, msg *Message) {
	msgLen := len(msg.Out)
	if msgLen > tgt.State.RecvBufLen {
		msgLen = tgt.State.RecvBufLen
	}
	k.transition(tgt, RunnableState())
	tgt.wakeRecv(RecvOutcome{
		Status:       RecvOK,
		Sender:       sender.ID(),
		Operation:    msg.Operation,
		MsgLen:       msgLen,
		RespCapacity: msg.InCap,
		LeaseCount:   len(msg.Leases),
		Message:      msg.Out[:msgLen],
	})
}

// Recv implements the recv() operation.
//
// specific == nil means an open receive: any sender, plus notifications.
// specific != nil and specific.IsKernel() means a closed receive that
// only accepts enabled notifications (no task may "send" to the kernel
// pseudo-id). specific != nil and non-kernel means a closed receive from
// exactly that task.
func (k *Kernel) Recv(caller *TCB, bufLen int, enabled uint32, specific *abi.TaskID) (outcome RecvOutcome, blocked bool) {
	acceptsNotifications := specific == nil || specific.IsKernel()

	if acceptsNotifications {
		if matched := caller.Pending & enabled; matched != 0 {
			caller.Pending &^= matched
			return RecvOutcome{Status: RecvOK, Sender: abi.KernelID, Operation: matched}, false
		}
	}

	if specific == nil {
		if sender, ok := k.bestSender(caller.Index, nil); ok {
			o := k.completeRecv(caller, sender, bufLen)
			k.transition(sender, SchedState{Kind: InReply, ReplyPeer: caller.Index})
			return o, false
		}
	} else if !specific.IsKernel() {
		senderTCB, gen, outOfRange, ok := k.lookup(*specific)
		if outOfRange {
			k.Fault(caller, abi.Fault{Source: abi.FaultSyscallUsage, Usage: abi.TaskOutOfRange})
			return RecvOutcome{}, false
		}
		if !ok {
			return RecvOutcome{Status: RecvDead, DeadGen: gen}, false
		}
		if senderTCB.State.Kind == InSend && senderTCB.State.Target == caller.Index {
			o := k.completeRecv(caller, senderTCB, bufLen)
			k.transition(senderTCB, SchedState{Kind: InReply, ReplyPeer: caller.Index})
			return o, false
		}
	}

	state := SchedState{Kind: InRecv, Open: specific == nil, Enabled: enabled, RecvBufLen: bufLen}
	if specific != nil {
		state.SpecificSender = specific.Index
		if specific.IsKernel() {
			state.SpecificSender = abi.KernelTaskIndex
		}
	}
	k.transition(caller, state)
	return RecvOutcome{}, true
}

// completeRecv computes the RecvOutcome for caller receiving sender's
// queued message, without mutating sender's scheduler state (the two
// call sites above move sender to InReply themselves once they've also
// decided what to do with caller).
func (k *Kernel) completeRecv(caller *TCB, sender *TCB, bufLen int) RecvOutcome {
	msg := sender.OutMessage
	msgLen := len(msg.Out)
	if msgLen > bufLen {
		msgLen = bufLen
	}
	return RecvOutcome{
		Status:       RecvOK,
		Sender:       sender.ID(),
		Operation:    msg.Operation,
		MsgLen:       msgLen,
		RespCapacity: msg.InCap,
		LeaseCount:   len(msg.Leases),
		Message:      msg.Out[:msgLen],
	}
}

// bestSender scans for tasks InSend{target: receiver}, optionally
// restricted to a single sender index, and returns the highest-priority
// match (tie-break by lowest task index).
func (k *Kernel) bestSender(receiver abi.TaskIndex, only *abi.TaskIndex) (*TCB, bool) {
	var best *TCB
	bestPriority := 0
	for _, u := range k.tasks {
		if u.State.Kind != InSend || u.State.Target != receiver {
			continue
		}
		if only != nil && u.Index != *only {
			continue
		}
		p := int(u.Descriptor.Priority)
		if best == nil || p < bestPriority || (p == bestPriority && u.Index < best.Index) {
			best = u
			bestPriority = p
		}
	}
	return best, best != nil
}

// Reply implements the reply() operation. peer must currently be
// InReply{peer: replier}; otherwise this is a kernel-detected usage fault
// on replier.
func (k *Kernel) Reply(replier *TCB, peerID abi.TaskID, code uint32, message []byte) {
	peer, _, outOfRange, ok := k.lookup(peerID)
	if outOfRange {
		k.Fault(replier, abi.Fault{Source: abi.FaultSyscallUsage, Usage: abi.TaskOutOfRange})
		return
	}
	if !ok || peer.State.Kind != InReply || peer.State.ReplyPeer != replier.Index {
		k.Fault(replier, abi.Fault{Source: abi.FaultSyscallUsage, Usage: abi.NotReplyWait})
		return
	}

	respLen := len(message)
	if peer.OutMessage != nil && respLen > peer.OutMessage.InCap {
		respLen = peer.OutMessage.InCap
	}
	resp := append([]byte(nil), message[:respLen]...)
	peer.OutMessage = nil
	k.transition(peer, RunnableState())
	peer.wakeSend(SendOutcome{Code: code, Response: resp})
}

// ReplyFault implements the reply_fault() operation: the
// caller (replier) continues Runnable, while peer is forced into
// Faulted{FromServer(replier, reason)}.
func (k *Kernel) ReplyFault(replier *TCB, peerID abi.TaskID, reason abi.ReplyFaultReason) {
	peer, _, outOfRange, ok := k.lookup(peerID)
	if outOfRange {
		k.Fault(replier, abi.Fault{Source: abi.FaultSyscallUsage, Usage: abi.TaskOutOfRange})
		return
	}
	if !ok || peer.State.Kind != InReply || peer.State.ReplyPeer != replier.Index {
		k.Fault(replier, abi.Fault{Source: abi.FaultSyscallUsage, Usage: abi.NotReplyWait})
		return
	}
	peer.OutMessage = nil
	k.Fault(peer, abi.Fault{Source: abi.FaultFromServer, Server: replier.ID(), Reason: reason})
}

// validateLeases checks each lease's [Base, Base+Length) against the
// union of the lender's declared regions; bounds checks happen before
// any copy, recovered from sys/userlib/src/lib.rs's USlice helpers:
// validation is against the lender's *declared regions*, not an ambient
// "all of RAM"
// check.
func (k *Kernel) validateLeases(lender *TCB, leases []Lease) bool {
	for _, l := range leases {
		covered := false
		for _, ri := range lender.Regions {
			if ri < 0 || ri >= len(k.image.Regions) {
				continue
			}
			r := k.image.Regions[ri]
			if l.Base >= r.Base && l.Base+l.Length <= r.Base+r.Size && l.Base+l.Length >= l.Base {
				if l.Attrs.Write && !r.Attrs.Write {
					continue
				}
				if !r.Attrs.Read {
					continue
				}
				covered = true
				break
			}
		}
		if !covered {
			return false
		}
	}
	return true
}
