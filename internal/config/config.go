// Package config loads the immutable build-time image the kernel boots
// from: task descriptors, region descriptors, the IRQ routing table, the
// supervisor index, and the tick period. In the original system this
// structure is emitted by a build-time configuration compiler and linked
// directly into the image as constants; here it is the output of parsing
// an app.toml-style document with github.com/BurntSushi/toml, read once
// at startup and never touched again by internal/kernel.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gofrs/flock"

	"github.com/oxidecomputer/hubris-go/internal/abi"
)

// TaskConfig is the compile-time-constant descriptor for one task, as
// spelled in app.toml.
type TaskConfig struct {
	Name          string        `toml:"name"`
	Entry         uint32        `toml:"entry_point"`
	InitialStack  uint32        `toml:"initial_stack"`
	Priority      uint8         `toml:"priority"`
	Start         bool          `toml:"start"`
	Regions       []int         `toml:"regions"`
	Interrupts    map[uint32]uint32 `toml:"interrupts"` // irq number -> notification mask
}

// RegionConfig is the compile-time-constant descriptor for one MPU
// region. Region 0 must be present and must grant no access.
type RegionConfig struct {
	Base    uint32 `toml:"base"`
	Size    uint32 `toml:"size"`
	Read    bool   `toml:"read"`
	Write   bool   `toml:"write"`
	Execute bool   `toml:"execute"`
	Device  bool   `toml:"device"`
	DMA     bool   `toml:"dma_coherent"`
}

// Document is the raw shape of the TOML image file.
type Document struct {
	Supervisor         int            `toml:"supervisor"`
	TickMillis         int            `toml:"tick_millis"`
	SupervisorFaultBit uint32         `toml:"supervisor_fault_bit"`
	Tasks              []TaskConfig   `toml:"tasks"`
	Regions            []RegionConfig `toml:"regions"`
}

// Image is the validated, immutable configuration the kernel is booted
// with. The kernel performs no I/O to discover any of it.
type Image struct {
	Supervisor         abi.TaskIndex
	TickPeriod         time.Duration
	SupervisorFaultBit uint32
	Tasks              []TaskConfig
	Regions            []abi.Region
}

// Load reads and validates a TOML image file at path. A file lock is
// held for the duration of the read so that a simulator instance started
// concurrently against the same image (e.g. from two terminals) does not
// observe a half-written file; this mirrors runsc's use of an advisory
// lock file to serialize access to sandbox-wide state.
func Load(path string) (*Image, error) {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("config: locking %s: %w", path, err)
	}
	defer lock.Unlock()

	var doc Document
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return nil, fmt.Errorf("config: decoding %s: %w", path, err)
	}
	return FromDocument(doc)
}

// FromDocument validates an already-parsed Document. Exported so tests
// and embedders can construct an Image without touching the filesystem.
func FromDocument(doc Document) (*Image, error) {
	if len(doc.Regions) == 0 || doc.Regions[0] != (RegionConfig{}) {
		return nil, fmt.Errorf("config: region 0 must be present and must be the all-zero null region")
	}
	if doc.Supervisor < 0 || doc.Supervisor >= len(doc.Tasks) {
		return nil, fmt.Errorf("config: supervisor index %d out of range", doc.Supervisor)
	}
	if doc.TickMillis <= 0 {
		return nil, fmt.Errorf("config: tick_millis must be positive")
	}

	regions := make([]abi.Region, len(doc.Regions))
	for i, r := range doc.Regions {
		regions[i] = abi.Region{
			Base: r.Base,
			Size: r.Size,
			Attrs: abi.RegionAttrs{
				Read:        r.Read,
				Write:       r.Write,
				Execute:     r.Execute,
				Device:      r.Device,
				DMACoherent: r.DMA,
			},
		}
	}

	for i, t := range doc.Tasks {
		if len(t.Regions) > 8 {
			return nil, fmt.Errorf("config: task %q declares %d regions, max is 8", t.Name, len(t.Regions))
		}
		for _, ri := range t.Regions {
			if ri < 0 || ri >= len(regions) {
				return nil, fmt.Errorf("config: task %q references out-of-range region %d", t.Name, ri)
			}
		}
		_ = i
	}

	faultBit := doc.SupervisorFaultBit
	if faultBit == 0 {
		faultBit = 0x1
	}

	return &Image{
		Supervisor:         abi.TaskIndex(doc.Supervisor),
		TickPeriod:         time.Duration(doc.TickMillis) * time.Millisecond,
		SupervisorFaultBit: faultBit,
		Tasks:              doc.Tasks,
		Regions:            regions,
	}, nil
}
