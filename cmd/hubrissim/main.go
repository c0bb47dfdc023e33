// Command hubrissim is a hosted simulator for the static-configuration,
// memory-isolated microkernel in internal/kernel: it boots a compile-time
// image (internal/config), runs it under the goroutine-per-task,
// mmap/mprotect-backed architecture port in internal/arch/sim, and
// exposes a handful of subcommands for driving and inspecting it, the way
// runsc's own CLI (runsc/cli/main.go) is a thin subcommand dispatcher
// over the sandbox it boots.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")

	subcommands.Register(&bootCmd{}, "")
	subcommands.Register(&statusCmd{}, "")
	subcommands.Register(&restartCmd{}, "")
	subcommands.Register(&injectCmd{}, "")

	flag.Parse()
	os.Exit(int(subcommands.Execute(context.Background())))
}
