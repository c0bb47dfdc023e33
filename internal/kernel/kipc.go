// kipc.go implements the small set of operations the kernel services
// directly when a message is addressed to task index 0 (the
// supervisor), rather than delivering it as an ordinary IPC message.
// ipc.go's Send recognizes a supervisor-targeted send and routes it here
// via dispatchKipc instead of the usual InSend/InReply dance, so the
// caller gets its SendOutcome back without ever blocking. The same
// operations are also reachable as direct Go calls (internal/supervisor,
// cmd/hubrissim) for privileged callers that aren't themselves a
// simulated task.
package kernel

import (
	"encoding/binary"

	"github.com/oxidecomputer/hubris-go/internal/abi"
)

// Supervisor kipc operation selectors. A send() whose target is the
// supervisor index carries one of these in its Operation field instead
// of an application-defined verb; Out carries the operation's argument
// bytes, packed little-endian per field — see dispatchKipc. ipc.go's
// Send intercepts these before the ordinary IPC dispatch, so the caller
// never blocks: the SendOutcome comes back in the same call.
const (
	KipcReadTaskStatus uint32 = iota
	KipcRestartTask
	KipcFaultTask
	KipcReadAndClearNotifications
)

// dispatchKipc decodes and executes a send() addressed to the
// supervisor, returning the SendOutcome Send hands straight back to
// caller. Any abi.UsageError an operation returns becomes
// SendOutcome.Code verbatim (abi.UsageOK is 0); Response is meaningful
// only when Code == 0. caller is the task that sent — for KipcFaultTask
// it also doubles as the injector FaultTask rejects self-faults against.
func (k *Kernel) dispatchKipc(caller *TCB, operation uint32, args []byte) SendOutcome {
	switch operation {
	case KipcReadTaskStatus:
		idx, ok := decodeTaskIndex(args)
		if !ok {
			return SendOutcome{Code: uint32(abi.BadMessageSize)}
		}
		status, errCode := k.ReadTaskStatus(idx)
		if errCode != abi.UsageOK {
			return SendOutcome{Code: uint32(errCode)}
		}
		return SendOutcome{Response: encodeTaskStatus(status)}

	case KipcRestartTask:
		idx, startImmediately, ok := decodeRestartArgs(args)
		if !ok {
			return SendOutcome{Code: uint32(abi.BadMessageSize)}
		}
		errCode := k.RestartTask(idx, startImmediately)
		return SendOutcome{Code: uint32(errCode)}

	case KipcFaultTask:
		idx, ok := decodeTaskIndex(args)
		if !ok {
			return SendOutcome{Code: uint32(abi.BadMessageSize)}
		}
		errCode := k.FaultTask(caller, idx)
		return SendOutcome{Code: uint32(errCode)}

	case KipcReadAndClearNotifications:
		bits := k.ReadAndClearNotifications(k.taskAt(k.Supervisor()))
		resp := make([]byte, 4)
		binary.LittleEndian.PutUint32(resp, bits)
		return SendOutcome{Response: resp}

	default:
		return SendOutcome{Code: uint32(abi.InvalidSyscallNumber)}
	}
}

func decodeTaskIndex(args []byte) (abi.TaskIndex, bool) {
	if len(args) < 2 {
		return 0, false
	}
	return abi.TaskIndex(binary.LittleEndian.Uint16(args)), true
}

func decodeRestartArgs(args []byte) (idx abi.TaskIndex, startImmediately bool, ok bool) {
	if len(args) < 3 {
		return 0, false, false
	}
	return abi.TaskIndex(binary.LittleEndian.Uint16(args)), args[2] != 0, true
}

// encodeTaskStatus packs a TaskStatus the way read_task_status's caller
// sees it on the wire: the target's refreshed (index, generation), then
// its scheduler Kind. The fault record itself (meaningful only when Kind
// is Faulted) isn't packed here — a caller that needs the full abi.Fault
// uses the direct ReadTaskStatus call the way internal/supervisor does,
// rather than decoding it back out of a byte slice.
func encodeTaskStatus(st TaskStatus) []byte {
	resp := make([]byte, 7)
	binary.LittleEndian.PutUint16(resp[0:2], uint16(st.ID.Index))
	binary.LittleEndian.PutUint32(resp[2:6], uint32(st.ID.Generation))
	resp[6] = byte(st.Kind)
	return resp
}

// TaskStatus is the read_task_status(i) result.
type TaskStatus struct {
	ID    abi.TaskID
	Kind  SchedKind
	Fault *abi.Fault // meaningful only when Kind == Faulted
}

// ReadTaskStatus implements read_task_status(i).
func (k *Kernel) ReadTaskStatus(index abi.TaskIndex) (TaskStatus, abi.UsageError) {
	t := k.taskAt(index)
	if t == nil {
		return TaskStatus{}, abi.TaskOutOfRange
	}
	return TaskStatus{ID: t.ID(), Kind: t.State.Kind, Fault: t.State.Fault}, abi.UsageOK
}

// RestartTask implements restart_task(i, start_immediately).
func (k *Kernel) RestartTask(index abi.TaskIndex, startImmediately bool) abi.UsageError {
	t := k.taskAt(index)
	if t == nil {
		return abi.TaskOutOfRange
	}
	k.Restart(t, startImmediately)
	return abi.UsageOK
}

// FaultTask implements fault_task(i) (supervisor-injected fault).
// fault_task(0) and fault_task(self) are rejected as IllegalTask: a
// supervisor cannot fault the supervisor slot, nor the caller faulting
// itself through this path (panic exists for that).
func (k *Kernel) FaultTask(injector *TCB, index abi.TaskIndex) abi.UsageError {
	if index == k.Supervisor() || index == injector.Index {
		return abi.IllegalTask
	}
	t := k.taskAt(index)
	if t == nil {
		return abi.TaskOutOfRange
	}
	k.Fault(t, abi.Fault{Source: abi.FaultInjected, Injector: injector.ID()})
	return abi.UsageOK
}

// ReadAndClearNotifications implements read_and_clear_notifications: it
// returns the supervisor's full pending set and clears it, independent of
// any enabled mask (the supervisor is privileged and may poll for any
// bit, not just ones it declared interest in via a blocking recv).
func (k *Kernel) ReadAndClearNotifications(supervisor *TCB) uint32 {
	bits := supervisor.Pending
	supervisor.Pending = 0
	return bits
}
