package kernel

import "github.com/oxidecomputer/hubris-go/internal/abi"

// lenderLease returns the lease at index for lender, but only while
// lender is actually InReply{peer: borrower} — i.e. while the borrow
// table the lease lives in (the lender's own OutMessage; leases are
// never materialized separately in kernel memory) is still valid. If
// lender has moved on (faulted out from under the server,
// restarted, or was never the borrower's peer), ok is false and the
// caller should return BorrowDefect without faulting either task.
func (k *Kernel) lenderLease(lender *TCB, borrower abi.TaskIndex, index int) (Lease, bool) {
	if lender.State.Kind != InReply || lender.State.ReplyPeer != borrower {
		return Lease{}, false
	}
	if lender.OutMessage == nil || index < 0 || index >= len(lender.OutMessage.Leases) {
		return Lease{}, false
	}
	return lender.OutMessage.Leases[index], true
}

// BorrowInfo implements the BorrowInfo syscall.
func (k *Kernel) BorrowInfo(borrower *TCB, lenderID abi.TaskID, index int) (status BorrowStatus, attrs abi.LeaseAttrs, length uint32) {
	lender, _, _, ok := k.lookup(lenderID)
	if !ok {
		return BorrowDefect, abi.LeaseAttrs{}, 0
	}
	lease, ok := k.lenderLease(lender, borrower.Index, index)
	if !ok {
		return BorrowDefect, abi.LeaseAttrs{}, 0
	}
	return BorrowOK, lease.Attrs, lease.Length
}

// BorrowRead implements the BorrowRead syscall: copy from the lender's
// lease, starting at offset, into dst. Returns the number of bytes
// actually copied (bounded by both the lease length and len(dst)).
func (k *Kernel) BorrowRead(borrower *TCB, lenderID abi.TaskID, index int, offset uint32, dst []byte) (status BorrowStatus, n int) {
	lender, _, _, ok := k.lookup(lenderID)
	if !ok {
		return BorrowDefect, 0
	}
	lease, ok := k.lenderLease(lender, borrower.Index, index)
	if !ok {
		return BorrowDefect, 0
	}
	if offset > lease.Length {
		return BorrowOK, 0
	}
	avail := int(lease.Length - offset)
	n = len(dst)
	if n > avail {
		n = avail
	}
	if n <= 0 {
		return BorrowOK, 0
	}
	copy(dst[:n], lease.Data[offset:int(offset)+n])
	return BorrowOK, n
}

// BorrowWrite implements the BorrowWrite syscall: the inverse of
// BorrowRead, rejected if the lease lacks the write attribute.
func (k *Kernel) BorrowWrite(borrower *TCB, lenderID abi.TaskID, index int, offset uint32, src []byte) (status BorrowStatus, n int) {
	lender, _, _, ok := k.lookup(lenderID)
	if !ok {
		return BorrowDefect, 0
	}
	lease, ok := k.lenderLease(lender, borrower.Index, index)
	if !ok {
		return BorrowDefect, 0
	}
	if !lease.Attrs.Write {
		return BorrowAccessViolation, 0
	}
	if offset > lease.Length {
		return BorrowOK, 0
	}
	avail := int(lease.Length - offset)
	n = len(src)
	if n > avail {
		n = avail
	}
	if n <= 0 {
		return BorrowOK, 0
	}
	copy(lease.Data[offset:int(offset)+n], src[:n])
	return BorrowOK, n
}
