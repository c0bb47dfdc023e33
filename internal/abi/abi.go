// Package abi defines the wire-level types shared by the kernel, the
// architecture port, and the static configuration: task and region
// identifiers, the notification bit width, and the fault taxonomy. These
// are kept separate from package kernel so that internal/config and
// internal/arch/sim can depend on them without importing the scheduler.
package abi

import "fmt"

// NotificationBits is the ABI-fixed width of a pending/enabled bitset.
// Treat this as a wire constant: server protocols encode masks as literals,
// so widening it is a migration, not a one-line change.
const NotificationBits = 32

// TaskIndex identifies a task's slot in the static task table.
type TaskIndex uint16

// Generation counts restarts of a task slot. KernelGeneration is a
// reserved sentinel that a real TCB's generation counter must never reach;
// restart() skips over it on wraparound.
type Generation uint32

const KernelGeneration Generation = 0xFFFFFFFF

// TaskID is the compound (index, generation) identifier used on the wire.
// Comparison is exact: a stale generation names a dead task, not the
// current occupant of the slot.
type TaskID struct {
	Index      TaskIndex
	Generation Generation
}

// KernelTaskIndex is the distinguished pseudo-index standing in for the
// kernel as a notification source in RecvReturn.Sender.
const KernelTaskIndex TaskIndex = 0xFFFF

// KernelID is the distinguished id representing "kernel origin" for
// notifications and synthetic replies.
var KernelID = TaskID{Index: KernelTaskIndex, Generation: KernelGeneration}

func (t TaskID) IsKernel() bool { return t.Index == KernelTaskIndex }

func (t TaskID) String() string {
	if t.IsKernel() {
		return "kernel"
	}
	return fmt.Sprintf("task(%d,%d)", t.Index, t.Generation)
}

// RegionAttrs describes the access rights and hardware character of a
// memory region. DMACoherent and Device are orthogonal to Read/Write/
// Execute: a region can be device memory that is also read-write.
type RegionAttrs struct {
	Read        bool
	Write       bool
	Execute     bool
	Device      bool
	DMACoherent bool
}

// Region is a compile-time-constant MPU region descriptor. Region index 0
// is reserved by convention as the null region: Attrs is the zero value
// and Size is 0, granting no access.
type Region struct {
	Base uint32
	Size uint32
	Attrs RegionAttrs
}

// Covers reports whether [off, off+length) lies entirely inside the
// region.
func (r Region) Covers(off, length uint32) bool {
	if length == 0 {
		return off <= r.Size
	}
	end := off + length
	if end < off {
		return false // overflow
	}
	return off <= r.Size && end <= r.Size
}

// LeaseAttrs is the subset of RegionAttrs relevant to a borrow: a lease is
// either read-only or read-write from the borrower's perspective.
type LeaseAttrs struct {
	Write bool
}

// UsageError enumerates kernel-detected misuse of the syscall ABI by a
// task. Send, Recv, Reply, ReplyFault and IRQControl fault the calling
// task with SyscallUsage(variant) when they detect one; Post and the
// kipc operations return the variant as a status code without faulting.
type UsageError int

const (
	UsageOK UsageError = iota
	TaskOutOfRange
	IllegalTask
	LeaseOutOfRange
	BadMessageSize
	NotReplyWait
	InvalidSyscallNumber
	InvalidSlice
)

func (u UsageError) String() string {
	switch u {
	case UsageOK:
		return "ok"
	case TaskOutOfRange:
		return "task index out of range"
	case IllegalTask:
		return "illegal task reference"
	case LeaseOutOfRange:
		return "lease escapes lender regions"
	case BadMessageSize:
		return "message size exceeds declared capacity"
	case NotReplyWait:
		return "peer not waiting for reply"
	case InvalidSyscallNumber:
		return "invalid syscall number"
	case InvalidSlice:
		return "slice bounds invalid"
	default:
		return fmt.Sprintf("UsageError(%d)", int(u))
	}
}

// ReplyFaultReason is carried in a FromServer fault: the reason a server
// gave for rejecting a client's request via reply_fault.
type ReplyFaultReason uint32

const (
	ReplyFaultBadMessageSize ReplyFaultReason = iota
	ReplyFaultBadLeases
	ReplyFaultAccessViolation
	ReplyFaultApplication
)

// FaultSource distinguishes the kind of Fault carried by a Faulted task.
type FaultSource int

const (
	FaultMemoryAccess FaultSource = iota
	FaultBusError
	FaultStackOverflow
	FaultIllegalText
	FaultIllegalInstruction
	FaultDivideByZero
	FaultInvalidOperation
	FaultSyscallUsage
	FaultFromServer
	FaultInjected
	FaultPanic
)

// Fault is the abstract fault record. Exactly one of the source-specific
// fields is meaningful, selected by Source.
type Fault struct {
	Source FaultSource

	// MemoryAccess / BusError / StackOverflow.
	Address *uint32

	// InvalidOperation.
	StatusWord uint32

	// SyscallUsage.
	Usage UsageError

	// FromServer.
	Server TaskID
	Reason ReplyFaultReason

	// Injected.
	Injector TaskID
}

func (f Fault) String() string {
	switch f.Source {
	case FaultMemoryAccess:
		return fmt.Sprintf("memory access fault%s", addrSuffix(f.Address))
	case FaultBusError:
		return fmt.Sprintf("bus error%s", addrSuffix(f.Address))
	case FaultStackOverflow:
		return fmt.Sprintf("stack overflow%s", addrSuffix(f.Address))
	case FaultIllegalText:
		return "illegal text"
	case FaultIllegalInstruction:
		return "illegal instruction"
	case FaultDivideByZero:
		return "divide by zero"
	case FaultInvalidOperation:
		return fmt.Sprintf("invalid operation (status=0x%x)", f.StatusWord)
	case FaultSyscallUsage:
		return fmt.Sprintf("syscall usage: %s", f.Usage)
	case FaultFromServer:
		return fmt.Sprintf("rejected by %s: reason %d", f.Server, f.Reason)
	case FaultInjected:
		return fmt.Sprintf("injected by %s", f.Injector)
	case FaultPanic:
		return "panic"
	default:
		return "unknown fault"
	}
}

func addrSuffix(a *uint32) string {
	if a == nil {
		return ""
	}
	return fmt.Sprintf(" at 0x%08x", *a)
}
