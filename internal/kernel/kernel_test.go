package kernel

import (
	"fmt"
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/oxidecomputer/hubris-go/internal/config"
)

// newTestKernel builds an n-task image where every task has priority
// equal to its index (task 0, the supervisor, is highest priority), one
// generous read-write region besides the mandatory null region, and
// start=true for every task.
func newTestKernel(t *testing.T, n int) *Kernel {
	t.Helper()
	regions := []config.RegionConfig{
		{}, // region 0: null
		{Base: 0, Size: 0x10000, Read: true, Write: true},
	}
	tasks := make([]config.TaskConfig, n)
	for i := range tasks {
		tasks[i] = config.TaskConfig{
			Name:     fmt.Sprintf("task%d", i),
			Priority: uint8(i),
			Start:    true,
			Regions:  []int{1},
		}
	}
	doc := config.Document{Supervisor: 0, TickMillis: 10, Tasks: tasks, Regions: regions}
	img, err := config.FromDocument(doc)
	if err != nil {
		t.Fatalf("building test image: %v", err)
	}
	log := logrus.New()
	log.SetOutput(io.Discard)
	k := New(log, img)
	k.Boot()
	return k
}

func mustRunnable(t *testing.T, tcb *TCB) {
	t.Helper()
	if tcb.State.Kind != Runnable {
		t.Fatalf("task %s: expected Runnable, got %s", tcb.ID(), tcb.State.Kind)
	}
}
