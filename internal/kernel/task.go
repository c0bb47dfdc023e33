// Package kernel is the architecture-independent core of the supervisory
// kernel: the task table, the scheduler, the synchronous IPC engine, the
// notification and timer engines, and the fault and kipc handlers. It has
// no knowledge of any particular MPU or trap mechanism — those live in
// internal/arch/sim — and performs no I/O: the configuration it runs
// against is handed to it once, fully formed, by internal/config.
//
// Every exported method here assumes it is called with exclusive access
// to the Kernel; there is deliberately no internal locking, mirroring the
// real kernel's "entered only through traps, runs to completion, no
// internal suspension points" discipline. internal/arch/sim's token
// handoff is what actually enforces that exclusivity at runtime.
package kernel

import (
	"github.com/oxidecomputer/hubris-go/internal/abi"
	"github.com/oxidecomputer/hubris-go/internal/config"
)

// SchedKind is the discriminant of a task's scheduler state. Go has no sum
// types (see gvisor's own taskRunState comment to this effect), so
// SchedState is a flat struct carrying only the fields that apply to its
// Kind.
type SchedKind int

const (
	Runnable SchedKind = iota
	InRecv
	InSend
	InReply
	Stopped
	Faulted
)

func (k SchedKind) String() string {
	switch k {
	case Runnable:
		return "Runnable"
	case InRecv:
		return "InRecv"
	case InSend:
		return "InSend"
	case InReply:
		return "InReply"
	case Stopped:
		return "Stopped"
	case Faulted:
		return "Faulted"
	default:
		return "SchedKind(?)"
	}
}

// SchedState is the tagged union representing a task's scheduler state.
type SchedState struct {
	Kind SchedKind

	// InSend: the task blocked waiting for Target to receive.
	Target abi.TaskIndex

	// InReply: the task that will eventually reply to us.
	ReplyPeer abi.TaskIndex

	// InRecv: Open means "accept any sender, plus notifications";
	// otherwise only SpecificSender (or the kernel) may wake us.
	Open           bool
	SpecificSender abi.TaskIndex
	Enabled        uint32
	RecvBufLen     int

	// Faulted: the cause, and the state we held the instant we faulted.
	Fault *abi.Fault
	Prior *SchedState
}

// RunnableState is the zero-allocation Runnable state.
func RunnableState() SchedState { return SchedState{Kind: Runnable} }

// StoppedState is the zero-allocation Stopped state.
func StoppedState() SchedState { return SchedState{Kind: Stopped} }

// Lease is one entry of a message's lease table: a (base, length,
// attributes) description of a subrange of the sender's memory, named
// relative to one of the sender's declared regions. Data is the actual
// backing bytes of that subrange, owned by the lender; borrow_read and
// borrow_write operate on it directly, so a borrow_write is genuinely
// visible to the lender once it resumes — exactly as if the receiver had
// reached into the lender's address space, which is what a hosted
// architecture port would do via the mapped region instead.
type Lease struct {
	Base   uint32
	Length uint32
	Attrs  abi.LeaseAttrs
	Data   []byte
}

// Message is the in-flight payload of a send that has not yet been
// replied to. The kernel never copies this into its own storage: recv
// (deliver/completeRecv) and the borrow_* syscalls read it directly off
// the sender's TCB (OutMessage) while the sender stays blocked. "The
// sender's memory" is represented by the plain byte slices the Message
// holds; it is not read from internal/arch/sim's mapped regions.
type Message struct {
	Operation uint32
	Out       []byte
	InCap     int
	Leases    []Lease
}

// Regs is the saved register state of a task: callee-saved integer
// registers, the stack pointer, the exception-return cookie, and
// callee-saved FP registers where the architecture has an FPU. The
// simulated architecture port never actually executes machine
// code, so these are opaque storage the sim can use however it likes
// (e.g. to remember where a goroutine should resume).
type Regs struct {
	R       [8]uint32
	SP      uint32
	ExcReturn uint32
	FP      [16]uint32
}

// TCB is one task's mutable control block. TCBs exist for the lifetime of
// the image; restart() reinitializes one in place rather than allocating
// a new one, advancing Generation.
type TCB struct {
	Index      abi.TaskIndex
	Generation abi.Generation
	Descriptor config.TaskConfig
	Regions    []int // region indices, resolved from Descriptor.Regions

	Regs Regs

	State SchedState

	Pending uint32 // 32-bit pending notification bitset

	TimerDeadline *uint64
	TimerBits     uint32

	// OutMessage is the message this task handed to the kernel via send,
	// live for as long as this task is InSend or InReply. The kernel never
	// copies it into its own storage; a receiver's recv reads it directly
	// off the sender's TCB, and a borrow_* syscall re-reads Leases from it
	// on every call.
	OutMessage *Message

	// PendingSend / PendingRecv hold the result of a blocking send/recv
	// once the kernel has resolved it (reply arrived, message matched,
	// notification fired, or the peer died). internal/arch/sim's trap
	// loop polls these after waking a task; internal/kernel's own tests
	// read them directly. Exactly one of the two is meaningful for any
	// task that was blocked, and it is cleared by whoever consumes it.
	PendingSend *SendOutcome
	PendingRecv *RecvOutcome

	// WakeCh, if set by the driver running this TCB, receives a
	// non-blocking notification every time the kernel moves this task
	// back to Runnable from a blocked state.
	WakeCh chan struct{}

	// LastFault is retained after a restart for diagnostic purposes even
	// though the live State has moved on to Runnable; read_task_status
	// reports the *current* State, not this — it exists only so a
	// supervisor task can ask "what did you fault with last time".
	LastFault *abi.Fault
}

// SendOutcome is the result of a send(), delivered once a reply (or a
// dead/fault resolution) becomes available.
type SendOutcome struct {
	Dead     bool
	DeadGen  abi.Generation
	Code     uint32
	Response []byte
}

// RecvStatus distinguishes the two outcomes of a recv() call.
type RecvStatus int

const (
	RecvOK RecvStatus = iota
	RecvDead
)

// RecvOutcome is the result of a recv(), delivered either immediately or
// once a message/notification satisfying the wait becomes available.
type RecvOutcome struct {
	Status       RecvStatus
	DeadGen      abi.Generation
	Sender       abi.TaskID
	Operation    uint32
	MsgLen       int
	RespCapacity int
	LeaseCount   int
	Message      []byte
}

// wakeSend and wakeRecv deliver an outcome to t and ping its wake channel,
// if any. They do not themselves change t.State; callers transition state
// first.
func (t *TCB) wakeSend(o SendOutcome) {
	t.PendingSend = &o
	t.ping()
}

func (t *TCB) wakeRecv(o RecvOutcome) {
	t.PendingRecv = &o
	t.ping()
}

func (t *TCB) ping() {
	if t.WakeCh == nil {
		return
	}
	select {
	case t.WakeCh <- struct{}{}:
	default:
	}
}

// ID returns the task's current (index, generation) identifier.
func (t *TCB) ID() abi.TaskID {
	return abi.TaskID{Index: t.Index, Generation: t.Generation}
}

// Matches reports whether id still names this TCB's current occupant.
func (t *TCB) Matches(id abi.TaskID) bool {
	return id.Index == t.Index && id.Generation == t.Generation
}
