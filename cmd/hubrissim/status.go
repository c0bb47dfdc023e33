package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
)

// statusCmd implements subcommands.Command for the "status" command: a
// quieter variant of boot that runs a small, fixed number of rounds
// (enough for the default demo image's one send/reply round trip to
// settle) and reports the task table.
type statusCmd struct {
	configPath string
}

func (*statusCmd) Name() string     { return "status" }
func (*statusCmd) Synopsis() string { return "report each task's current scheduler state" }
func (*statusCmd) Usage() string    { return `status [-config path] - print the task status table` }

func (c *statusCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "config", "", "path to a TOML image document; the built-in demo image is used if empty")
}

func (c *statusCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	dm, err := newDemo(c.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hubrissim: status: %v\n", err)
		return subcommands.ExitFailure
	}
	defer dm.d.Close()

	dm.run(3)
	printStatus(dm.statusTable())
	return subcommands.ExitSuccess
}
