package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/oxidecomputer/hubris-go/internal/config"
	"github.com/oxidecomputer/hubris-go/internal/kernel"
)

// Boot builds the initial MPU/region state for every task in image,
// resets every TCB (via Kernel.Boot, which calls reinitialize for every
// task; no stack memory is zeroed or poisoned), and returns a Driver ready to have TaskFuncs Spawned onto
// it. This is the simulated stand-in for arm_m.rs's reset handler: where
// the real kernel's reset vector runs once, in hardware, before any task
// exists, here the sequence is "mmap the regions, construct the Kernel,
// boot it, then let the embedder Spawn code for whichever tasks it wants
// to actually execute."
func Boot(log *logrus.Logger, image *config.Image) (*Driver, error) {
	mem, err := NewAddressSpace(image.Regions)
	if err != nil {
		return nil, fmt.Errorf("sim: building address space: %w", err)
	}
	k := kernel.New(log, image)
	k.Boot()
	return New(k, mem), nil
}

// Kernel exposes the underlying Kernel, e.g. for a supervisor watcher or
// a CLI subcommand that wants to call ReadTaskStatus/RestartTask directly
// rather than through a simulated task's Context.
func (d *Driver) Kernel() *kernel.Kernel { return d.k }
