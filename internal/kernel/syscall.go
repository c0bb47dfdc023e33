// syscall.go names the kernel's syscall ABI. The numbers are part of the
// wire contract between user tasks and the kernel. No trap path in this
// module decodes them: internal/arch/sim's Context calls the typed Kernel
// methods in ipc.go, notify.go, timer.go, borrow.go, irq.go, and kipc.go
// directly, and the numbers are used only for naming. Keeping the
// enumeration here (rather than only in the simulator) lets tests and
// tooling refer to syscalls by name without importing the architecture
// port, the way gvisor's kernel package enumerates its syscall table
// independently of any particular platform.
package kernel

import "github.com/oxidecomputer/hubris-go/internal/abi"

// Syscall numbers.
const (
	SysSend             = 0
	SysRecv             = 1
	SysReply            = 2
	SysSetTimer         = 3
	SysBorrowRead       = 4
	SysBorrowWrite      = 5
	SysBorrowInfo       = 6
	SysIrqControl       = 7
	SysPanic            = 8
	SysGetTimer         = 9
	SysRefreshTaskID    = 10
	SysPost             = 11
	SysReplyFault       = 12
)

// SyscallName returns the mnemonic for a syscall number, for logging.
func SyscallName(num uint32) string {
	switch num {
	case SysSend:
		return "Send"
	case SysRecv:
		return "Recv"
	case SysReply:
		return "Reply"
	case SysSetTimer:
		return "SetTimer"
	case SysBorrowRead:
		return "BorrowRead"
	case SysBorrowWrite:
		return "BorrowWrite"
	case SysBorrowInfo:
		return "BorrowInfo"
	case SysIrqControl:
		return "IrqControl"
	case SysPanic:
		return "Panic"
	case SysGetTimer:
		return "GetTimer"
	case SysRefreshTaskID:
		return "RefreshTaskId"
	case SysPost:
		return "Post"
	case SysReplyFault:
		return "ReplyFault"
	default:
		return "Unknown"
	}
}

// RefreshTaskID implements the RefreshTaskId syscall: given a task
// index, return the id carrying its current generation. This is the
// cheap way a task holding a dead-code status refreshes an id it
// remembers before retrying a send.
func (k *Kernel) RefreshTaskID(index abi.TaskIndex) abi.TaskID {
	t := k.taskAt(index)
	if t == nil {
		return abi.TaskID{Index: index}
	}
	return t.ID()
}
