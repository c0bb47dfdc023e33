package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
)

// bootCmd implements subcommands.Command for the "boot" command.
type bootCmd struct {
	configPath string
	steps      int
}

func (*bootCmd) Name() string     { return "boot" }
func (*bootCmd) Synopsis() string { return "boot an image and run the scheduler for a number of steps" }
func (*bootCmd) Usage() string {
	return `boot [-config path] [-steps N] - boot a static image and drive the simulator`
}

func (c *bootCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "config", "", "path to a TOML image document; the built-in demo image is used if empty")
	f.IntVar(&c.steps, "steps", 20, "number of scheduling rounds to run before reporting status")
}

func (c *bootCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	dm, err := newDemo(c.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hubrissim: boot: %v\n", err)
		return subcommands.ExitFailure
	}
	defer dm.d.Close()

	dm.run(c.steps)
	printStatus(dm.statusTable())
	return subcommands.ExitSuccess
}
