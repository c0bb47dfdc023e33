package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/oxidecomputer/hubris-go/internal/abi"
)

// restartCmd implements subcommands.Command for the "restart" command: it
// calls restart_task directly against a booted image, bypassing the
// backoff watcher, to demonstrate the bare kipc operation in isolation.
type restartCmd struct {
	configPath string
	task       int
	start      bool
}

func (*restartCmd) Name() string     { return "restart" }
func (*restartCmd) Synopsis() string { return "restart a task via the supervisor's restart_task kipc op" }
func (*restartCmd) Usage() string {
	return `restart [-config path] -task N [-start=false] - restart task N`
}

func (c *restartCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "config", "", "path to a TOML image document; the built-in demo image is used if empty")
	f.IntVar(&c.task, "task", 1, "index of the task to restart")
	f.BoolVar(&c.start, "start", true, "whether the restarted task should become Runnable immediately")
}

func (c *restartCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	dm, err := newDemo(c.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hubrissim: restart: %v\n", err)
		return subcommands.ExitFailure
	}
	defer dm.d.Close()

	if errCode := dm.d.Kernel().RestartTask(abi.TaskIndex(c.task), c.start); errCode != abi.UsageOK {
		fmt.Fprintf(os.Stderr, "hubrissim: restart: %s\n", errCode)
		return subcommands.ExitFailure
	}
	printStatus(dm.statusTable())
	return subcommands.ExitSuccess
}
