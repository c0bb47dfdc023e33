package kernel

// Now returns the current tick count.
func (k *Kernel) Now() uint64 { return k.tick }

// SetTimer implements the SetTimer syscall. Disabling (enable=false)
// simply disarms any existing deadline. If the requested deadline has
// already passed, the post happens immediately and no deadline is armed:
// if absolute_tick <= now at registration time, the post is immediate
// and the deadline is not armed.
func (k *Kernel) SetTimer(t *TCB, enable bool, deadline uint64, bits uint32) {
	k.timers.Disarm(t.Index)
	t.TimerDeadline = nil
	t.TimerBits = 0
	if !enable {
		return
	}
	if deadline <= k.tick {
		k.post(t, bits)
		return
	}
	d := deadline
	t.TimerDeadline = &d
	t.TimerBits = bits
	k.timers.Arm(t.Index, deadline)
}

// GetTimer implements the GetTimer syscall: (now, deadline, bits).
func (k *Kernel) GetTimer(t *TCB) (now uint64, deadline *uint64, bits uint32) {
	return k.tick, t.TimerDeadline, t.TimerBits
}

// Tick advances the monotonic counter by one period and fires every
// deadline that has now arrived, in deadline order. Firing a deadline
// OR-s its notification bits into the owning task's pending set exactly
// like Post, and then clears the deadline — it does not requeue.
func (k *Kernel) Tick() {
	k.tick++
	due := k.timers.Due(k.tick)
	for _, e := range due {
		t := k.taskAt(e.Task)
		if t == nil {
			continue
		}
		bits := t.TimerBits
		t.TimerDeadline = nil
		t.TimerBits = 0
		k.post(t, bits)
	}
}
