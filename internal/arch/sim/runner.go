package sim

import (
	"github.com/oxidecomputer/hubris-go/internal/abi"
	"github.com/oxidecomputer/hubris-go/internal/kernel"
)

// TaskFunc is the simulated replacement for a task's compiled entry
// point: a function the embedder supplies (a test scenario, or one of
// cmd/hubrissim's demo tasks) that runs for one scheduling quantum against
// ctx and returns. Returning models "the task made a syscall that blocked,
// or voluntarily yielded the rest of its slice"; there is no preemption
// mid-TaskFunc because nothing mid-function can be interrupted in a
// hosted goroutine the way a real tick or higher-priority IRQ interrupts
// a running Cortex-M task — Driver relies on every TaskFunc call
// eventually returning on its own.
type TaskFunc func(ctx *Context)

// Context is the simulated per-task execution environment: the syscall
// surface a TaskFunc uses to talk to the kernel, plus bounds-checked
// access to the task's own declared regions. It is handed to a TaskFunc
// fresh on every scheduling quantum; it is not safe to retain across
// quanta.
type Context struct {
	d    *Driver
	self *kernel.TCB
}

// Self returns the calling task's current id.
func (c *Context) Self() abi.TaskID { return c.self.ID() }

// Send blocks (from the TaskFunc's perspective) until a reply, fault, or
// dead-code resolution is available, then returns it.
func (c *Context) Send(target abi.TaskID, op uint32, out []byte, inCap int, leases []kernel.Lease) kernel.SendOutcome {
	outcome, blocked := c.d.k.Send(c.self, target, op, out, inCap, leases)
	if !blocked {
		return outcome
	}
	return c.waitSend()
}

// Recv blocks until a message or notification matching the wait is
// available.
func (c *Context) Recv(bufLen int, enabled uint32, specific *abi.TaskID) kernel.RecvOutcome {
	outcome, blocked := c.d.k.Recv(c.self, bufLen, enabled, specific)
	if !blocked {
		return outcome
	}
	return c.waitRecv()
}

func (c *Context) waitSend() kernel.SendOutcome {
	c.d.yield(c.self)
	o := c.self.PendingSend
	c.self.PendingSend = nil
	return *o
}

func (c *Context) waitRecv() kernel.RecvOutcome {
	c.d.yield(c.self)
	o := c.self.PendingRecv
	c.self.PendingRecv = nil
	return *o
}

// Reply, Post, SetTimer, GetTimer, Panic and the borrow/irq syscalls never
// block, so they pass straight through to the kernel.
func (c *Context) Reply(peer abi.TaskID, code uint32, msg []byte) { c.d.k.Reply(c.self, peer, code, msg) }
func (c *Context) ReplyFault(peer abi.TaskID, reason abi.ReplyFaultReason) {
	c.d.k.ReplyFault(c.self, peer, reason)
}
func (c *Context) Post(target abi.TaskIndex, bits uint32) abi.UsageError {
	return c.d.k.Post(target, bits)
}
func (c *Context) SetTimer(enable bool, deadline uint64, bits uint32) {
	c.d.k.SetTimer(c.self, enable, deadline, bits)
}
func (c *Context) GetTimer() (uint64, *uint64, uint32) { return c.d.k.GetTimer(c.self) }
func (c *Context) Panic()                              { c.d.k.Panic(c.self) }
func (c *Context) IRQControl(irq uint32, enable bool) abi.UsageError {
	return c.d.k.IRQControl(c.self, irq, enable)
}
func (c *Context) BorrowRead(lender abi.TaskID, index int, offset uint32, dst []byte) (kernel.BorrowStatus, int) {
	return c.d.k.BorrowRead(c.self, lender, index, offset, dst)
}
func (c *Context) BorrowWrite(lender abi.TaskID, index int, offset uint32, src []byte) (kernel.BorrowStatus, int) {
	return c.d.k.BorrowWrite(c.self, lender, index, offset, src)
}
func (c *Context) BorrowInfo(lender abi.TaskID, index int) (kernel.BorrowStatus, abi.LeaseAttrs, uint32) {
	return c.d.k.BorrowInfo(c.self, lender, index)
}

// Region gives the TaskFunc bounds-checked access to one of its own
// declared regions by position in its Descriptor.Regions list, the
// simulated equivalent of a task dereferencing a pointer the build-time
// linker placed inside one of its MPU regions.
func (c *Context) Region(slot int) (read func(offset, length uint32, dst []byte) (int, *abi.Fault), write func(offset, length uint32, src []byte) (int, *abi.Fault), ok bool) {
	if slot < 0 || slot >= len(c.self.Regions) {
		return nil, nil, false
	}
	idx := c.self.Regions[slot]
	return func(offset, length uint32, dst []byte) (int, *abi.Fault) {
			return c.d.mem.Read(idx, offset, length, dst)
		}, func(offset, length uint32, src []byte) (int, *abi.Fault) {
			return c.d.mem.Write(idx, offset, length, src)
		}, true
}

// runningTask is the goroutine-side half of one task's token handoff.
type runningTask struct {
	fn   TaskFunc
	run  chan struct{}
	done chan struct{}
	quit chan struct{}
}

// Driver is the simulated architecture port: it owns the kernel, the
// mmap'd address space, and one goroutine per task, and drives the
// strict-priority scheduler by handing a token to exactly one task's
// goroutine at a time.
type Driver struct {
	k    *kernel.Kernel
	mem  *AddressSpace
	runs map[abi.TaskIndex]*runningTask
}

// New builds a Driver around an already-booted Kernel and its address
// space. Call Spawn for each task before Run.
func New(k *kernel.Kernel, mem *AddressSpace) *Driver {
	return &Driver{k: k, mem: mem, runs: make(map[abi.TaskIndex]*runningTask)}
}

// Spawn registers fn as idx's TaskFunc and starts its goroutine, parked
// waiting for its first turn. Must be called before Run for every task
// the embedder wants simulated; a task with no TaskFunc is still present
// in the kernel's table (e.g. to exercise fault/restart paths from the
// driver loop itself) but is never scheduled to execute.
func (d *Driver) Spawn(idx abi.TaskIndex, fn TaskFunc) {
	r := &runningTask{fn: fn, run: make(chan struct{}), done: make(chan struct{}), quit: make(chan struct{})}
	d.runs[idx] = r
	tcb := d.k.TaskAt(idx)
	go func() {
		for {
			select {
			case <-r.run:
			case <-r.quit:
				return
			}
			fn(&Context{d: d, self: tcb})
			r.done <- struct{}{}
		}
	}()
}

// yield hands the scheduling token back to the dispatcher (unblocking the
// Step call that admitted this task) and parks until the dispatcher
// admits it again. Reschedule only ever re-admits a Runnable task, so by
// the time r.run fires here the kernel has already resolved whatever this
// task was blocked on; there is no separate wake signal to wait for.
func (d *Driver) yield(t *kernel.TCB) {
	r := d.runs[t.Index]
	r.done <- struct{}{}
	<-r.run
}

// Step runs one scheduling round: reschedule, activate the winner's
// address space, hand it the token, and wait for it to yield. It returns
// false if no task was runnable (the image is idle or wedged).
func (d *Driver) Step() bool {
	idx, ok := d.k.Reschedule()
	if !ok {
		return false
	}
	tcb := d.k.TaskAt(idx)
	if err := d.mem.activate(tcb.Regions); err != nil {
		d.k.Log.WithError(err).Error("sim: activating address space")
	}
	r, ok := d.runs[idx]
	if !ok {
		return true // task has no TaskFunc (e.g. supervisor driven out-of-band); nothing to run
	}
	r.run <- struct{}{}
	<-r.done
	return true
}

// Run drives Step in a loop until stop is closed.
func (d *Driver) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}
		if !d.Step() {
			return
		}
	}
}

// Close stops every spawned goroutine and releases the address space.
func (d *Driver) Close() {
	for _, r := range d.runs {
		close(r.quit)
	}
	d.mem.Close()
}
