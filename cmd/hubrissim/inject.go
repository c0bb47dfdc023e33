package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/oxidecomputer/hubris-go/internal/abi"
)

// injectCmd implements subcommands.Command for the "inject" command: it
// faults a task as if the supervisor had called fault_task on it, then
// drives the simulator forward so the restart watcher's backoff policy
// can be observed bringing it back.
type injectCmd struct {
	configPath string
	task       int
	steps      int
}

func (*injectCmd) Name() string     { return "inject" }
func (*injectCmd) Synopsis() string { return "inject a fault into a task and watch the supervisor recover it" }
func (*injectCmd) Usage() string {
	return `inject [-config path] -task N [-steps N] - fault_task(N), then run the restart watcher`
}

func (c *injectCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "config", "", "path to a TOML image document; the built-in demo image is used if empty")
	f.IntVar(&c.task, "task", 2, "index of the task to fault")
	f.IntVar(&c.steps, "steps", 30, "scheduling rounds to run after injecting the fault")
}

func (c *injectCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	dm, err := newDemo(c.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hubrissim: inject: %v\n", err)
		return subcommands.ExitFailure
	}
	defer dm.d.Close()

	sup := dm.d.Kernel().TaskAt(dm.d.Kernel().Supervisor())
	if errCode := dm.d.Kernel().FaultTask(sup, abi.TaskIndex(c.task)); errCode != abi.UsageOK {
		fmt.Fprintf(os.Stderr, "hubrissim: inject: %s\n", errCode)
		return subcommands.ExitFailure
	}
	fmt.Fprintln(os.Stdout, "--- immediately after fault_task ---")
	printStatus(dm.statusTable())

	dm.run(c.steps)
	fmt.Fprintln(os.Stdout, "--- after the watcher had a chance to restart it ---")
	printStatus(dm.statusTable())
	return subcommands.ExitSuccess
}
