package main

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/oxidecomputer/hubris-go/internal/abi"
	"github.com/oxidecomputer/hubris-go/internal/arch/sim"
	"github.com/oxidecomputer/hubris-go/internal/config"
	"github.com/oxidecomputer/hubris-go/internal/kernel"
	"github.com/oxidecomputer/hubris-go/internal/supervisor"
)

// defaultDocument is the built-in three-task image used when no -config
// file is given: task 0 is the supervisor, task 1 is a client that pings
// task 2 once per scheduling round, task 2 is a server that replies and
// then deliberately panics every third request to give the restart
// commands something to demonstrate.
func defaultDocument() config.Document {
	regions := []config.RegionConfig{
		{}, // null
		{Base: 0, Size: 4096, Read: true, Write: true},
	}
	tasks := []config.TaskConfig{
		{Name: "supervisor", Priority: 0, Start: true, Regions: []int{1}},
		{Name: "client", Priority: 1, Start: true, Regions: []int{1}},
		{Name: "server", Priority: 2, Start: true, Regions: []int{1}},
	}
	return config.Document{Supervisor: 0, TickMillis: 10, Tasks: tasks, Regions: regions}
}

// demo bundles the pieces a subcommand needs: a booted driver, the
// restart-backoff watcher sitting over its kipc surface, and the logger
// both were built with.
type demo struct {
	log *logrus.Logger
	d   *sim.Driver
	w   *supervisor.Watcher
}

func newDemo(configPath string) (*demo, error) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	log.SetLevel(logrus.InfoLevel)

	var img *config.Image
	var err error
	if configPath != "" {
		img, err = config.Load(configPath)
	} else {
		img, err = config.FromDocument(defaultDocument())
	}
	if err != nil {
		return nil, err
	}

	d, err := sim.Boot(log, img)
	if err != nil {
		return nil, err
	}

	// The supervisor blocks in an open recv for its fault-notification
	// bit between rounds, the same as any other task waiting for work:
	// without a TaskFunc here it would boot Runnable and never yield,
	// and being priority 0 it would win every Reschedule forever,
	// starving tasks 1 and 2.
	faultBit := img.SupervisorFaultBit
	d.Spawn(d.Kernel().Supervisor(), func(ctx *sim.Context) {
		ctx.Recv(64, faultBit, nil)
	})

	serverCalls := 0
	if d.Kernel().NumTasks() > 2 {
		server := d.Kernel().TaskAt(2).ID()
		d.Spawn(1, func(ctx *sim.Context) {
			out := ctx.Send(server, 1, []byte("ping"), 4, nil)
			_ = out
		})
		d.Spawn(2, func(ctx *sim.Context) {
			in := ctx.Recv(64, 0, nil)
			serverCalls++
			if serverCalls%3 == 0 {
				ctx.Panic()
				return
			}
			ctx.Reply(in.Sender, 0, []byte("pong"))
		})
	}

	w := supervisor.New(d.Kernel(), log, nil)
	return &demo{log: log, d: d, w: w}, nil
}

// run steps the scheduler n times, sweeping the restart watcher after
// every step so a faulted task is restarted (subject to its backoff) the
// way a real supervisor task would after noticing the fault notification
// bit.
func (dm *demo) run(n int) {
	for i := 0; i < n; i++ {
		if !dm.d.Step() {
			return
		}
		dm.d.Kernel().Tick()
		dm.w.Sweep()
	}
}

func (dm *demo) statusTable() []kernel.TaskStatus {
	rows := make([]kernel.TaskStatus, 0, dm.d.Kernel().NumTasks())
	for i := 0; i < dm.d.Kernel().NumTasks(); i++ {
		st, _ := dm.d.Kernel().ReadTaskStatus(abi.TaskIndex(i))
		rows = append(rows, st)
	}
	return rows
}
