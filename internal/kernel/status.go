package kernel

import "github.com/oxidecomputer/hubris-go/internal/abi"

// DeadTag is the sentinel occupying the top bits of a dead-code status
// word. The low 8 bits carry the target's current generation, so a
// caller can recover which generation of the target it was actually
// talking to.
const DeadTag uint32 = 0x80000000

// DeadStatus packs a dead-code status word for the given current
// generation.
func DeadStatus(gen abi.Generation) uint32 {
	return DeadTag | (uint32(gen) & 0xFF)
}

// IsDead reports whether a raw status word carries the dead-code
// sentinel.
func IsDead(status uint32) bool { return status&DeadTag != 0 }

// DeadGeneration extracts the low-8-bit generation carried by a
// dead-code status word.
func DeadGeneration(status uint32) abi.Generation { return abi.Generation(status & 0xFF) }

// BorrowStatus is the result code of a borrow_* syscall.
type BorrowStatus int

const (
	BorrowOK BorrowStatus = iota
	// BorrowDefect is returned when the lender is no longer in
	// reply-wait state (e.g. faulted out from under the server); it
	// faults neither task.
	BorrowDefect
	// BorrowAccessViolation is returned when the lease lacks the
	// attribute the operation requires (e.g. borrow_write on a
	// read-only lease).
	BorrowAccessViolation
)

func (s BorrowStatus) String() string {
	switch s {
	case BorrowOK:
		return "ok"
	case BorrowDefect:
		return "defect"
	case BorrowAccessViolation:
		return "access violation"
	default:
		return "unknown"
	}
}
