package kernel

import (
	"testing"

	"github.com/oxidecomputer/hubris-go/internal/abi"
)

func TestReadTaskStatus(t *testing.T) {
	k := newTestKernel(t, 2)
	st, err := k.ReadTaskStatus(1)
	if err != abi.UsageOK {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Kind != Runnable || st.ID != k.tasks[1].ID() {
		t.Fatalf("unexpected status: %+v", st)
	}

	_, err = k.ReadTaskStatus(99)
	if err != abi.TaskOutOfRange {
		t.Fatalf("expected TaskOutOfRange, got %v", err)
	}
}

func TestRestartTaskAdvancesGeneration(t *testing.T) {
	k := newTestKernel(t, 2)
	before := k.tasks[1].Generation
	if err := k.RestartTask(1, true); err != abi.UsageOK {
		t.Fatalf("unexpected error: %v", err)
	}
	if k.tasks[1].Generation != before+1 {
		t.Fatalf("expected generation to advance by 1, got %d -> %d", before, k.tasks[1].Generation)
	}
	mustRunnable(t, k.tasks[1])
}

func TestRestartTaskStoppedWhenNotImmediate(t *testing.T) {
	k := newTestKernel(t, 2)
	if err := k.RestartTask(1, false); err != abi.UsageOK {
		t.Fatalf("unexpected error: %v", err)
	}
	if k.tasks[1].State.Kind != Stopped {
		t.Fatalf("expected Stopped, got %s", k.tasks[1].State.Kind)
	}
}

func TestFaultTaskRejectsSupervisorAndSelf(t *testing.T) {
	k := newTestKernel(t, 3)
	sup := k.tasks[0]

	if err := k.FaultTask(sup, 0); err != abi.IllegalTask {
		t.Fatalf("fault_task(supervisor) should be IllegalTask, got %v", err)
	}
	if err := k.FaultTask(sup, sup.Index); err != abi.IllegalTask {
		t.Fatalf("fault_task(self) should be IllegalTask, got %v", err)
	}

	if err := k.FaultTask(sup, 1); err != abi.UsageOK {
		t.Fatalf("unexpected error: %v", err)
	}
	if k.tasks[1].State.Kind != Faulted || k.tasks[1].State.Fault.Source != abi.FaultInjected {
		t.Fatalf("task 1 should be Faulted{Injected}, got %+v", k.tasks[1].State)
	}
	if k.tasks[1].State.Fault.Injector != sup.ID() {
		t.Fatalf("fault record should name the injecting supervisor")
	}
}

func TestReadAndClearNotifications(t *testing.T) {
	k := newTestKernel(t, 2)
	sup := k.tasks[0]
	k.Post(sup.Index, 0x3)
	if bits := k.ReadAndClearNotifications(sup); bits != 0x3 {
		t.Fatalf("expected 0x3, got %#x", bits)
	}
	if sup.Pending != 0 {
		t.Fatalf("pending should be cleared after read_and_clear, got %#x", sup.Pending)
	}
}

// A send() targeting the supervisor never blocks the caller: the kernel
// services it inline via dispatchKipc and hands the SendOutcome straight
// back.
func TestSendToSupervisorDispatchesReadTaskStatus(t *testing.T) {
	k := newTestKernel(t, 3)
	caller, sup := k.tasks[1], k.tasks[0]

	args := encodeTaskIndexArg(2)
	out, blocked := k.Send(caller, sup.ID(), KipcReadTaskStatus, args, 0, nil)
	if blocked {
		t.Fatalf("send to the supervisor must not block")
	}
	if out.Code != uint32(abi.UsageOK) {
		t.Fatalf("unexpected code: %d", out.Code)
	}
	if len(out.Response) != 7 {
		t.Fatalf("unexpected response length: %d", len(out.Response))
	}
	if got := decodeTaskIndex16(out.Response); got != uint16(k.tasks[2].Index) {
		t.Fatalf("response index: got %d want %d", got, k.tasks[2].Index)
	}
	if SchedKind(out.Response[6]) != Runnable {
		t.Fatalf("expected Runnable, got %s", SchedKind(out.Response[6]))
	}
	mustRunnable(t, caller)
}

func TestSendToSupervisorDispatchesRestartTask(t *testing.T) {
	k := newTestKernel(t, 3)
	caller, sup := k.tasks[1], k.tasks[0]
	target := k.tasks[2]
	before := target.Generation

	args := append(encodeTaskIndexArg(uint16(target.Index)), 1)
	out, blocked := k.Send(caller, sup.ID(), KipcRestartTask, args, 0, nil)
	if blocked {
		t.Fatalf("send to the supervisor must not block")
	}
	if out.Code != uint32(abi.UsageOK) {
		t.Fatalf("unexpected code: %d", out.Code)
	}
	if target.Generation != before+1 {
		t.Fatalf("expected generation to advance, got %d -> %d", before, target.Generation)
	}
	mustRunnable(t, target)
}

func TestSendToSupervisorDispatchesFaultTaskRejectsSelfAndSupervisor(t *testing.T) {
	k := newTestKernel(t, 3)
	caller, sup := k.tasks[1], k.tasks[0]

	out, _ := k.Send(caller, sup.ID(), KipcFaultTask, encodeTaskIndexArg(uint16(caller.Index)), 0, nil)
	if out.Code != uint32(abi.IllegalTask) {
		t.Fatalf("fault_task(self) via send should be IllegalTask, got %d", out.Code)
	}

	out, _ = k.Send(caller, sup.ID(), KipcFaultTask, encodeTaskIndexArg(uint16(sup.Index)), 0, nil)
	if out.Code != uint32(abi.IllegalTask) {
		t.Fatalf("fault_task(supervisor) via send should be IllegalTask, got %d", out.Code)
	}

	out, _ = k.Send(caller, sup.ID(), KipcFaultTask, encodeTaskIndexArg(uint16(k.tasks[2].Index)), 0, nil)
	if out.Code != uint32(abi.UsageOK) {
		t.Fatalf("unexpected code: %d", out.Code)
	}
	if k.tasks[2].State.Kind != Faulted || k.tasks[2].State.Fault.Injector != caller.ID() {
		t.Fatalf("expected task 2 faulted with caller as injector, got %+v", k.tasks[2].State)
	}
}

func TestSendToSupervisorDispatchesReadAndClearNotifications(t *testing.T) {
	k := newTestKernel(t, 2)
	caller, sup := k.tasks[1], k.tasks[0]
	k.Post(sup.Index, 0x7)

	out, blocked := k.Send(caller, sup.ID(), KipcReadAndClearNotifications, nil, 0, nil)
	if blocked {
		t.Fatalf("send to the supervisor must not block")
	}
	if out.Code != uint32(abi.UsageOK) || len(out.Response) != 4 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if sup.Pending != 0 {
		t.Fatalf("pending should be cleared, got %#x", sup.Pending)
	}
}

func TestSendToSupervisorRejectsShortArgs(t *testing.T) {
	k := newTestKernel(t, 2)
	caller, sup := k.tasks[1], k.tasks[0]

	out, _ := k.Send(caller, sup.ID(), KipcReadTaskStatus, []byte{0x01}, 0, nil)
	if out.Code != uint32(abi.BadMessageSize) {
		t.Fatalf("expected BadMessageSize, got %d", out.Code)
	}
}

func TestSendToSupervisorRejectsUnknownOperation(t *testing.T) {
	k := newTestKernel(t, 2)
	caller, sup := k.tasks[1], k.tasks[0]

	out, _ := k.Send(caller, sup.ID(), 0xFFFF, nil, 0, nil)
	if out.Code != uint32(abi.InvalidSyscallNumber) {
		t.Fatalf("expected InvalidSyscallNumber, got %d", out.Code)
	}
}

func encodeTaskIndexArg(idx uint16) []byte {
	return []byte{byte(idx), byte(idx >> 8)}
}

func decodeTaskIndex16(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}
