// Package main provides the entry point for rv32sim.
// rv32sim assembles RV32I programs and runs them on a cycle-accurate 5-stage
// pipeline or on the functional emulator.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/kr/pretty"
	"github.com/logrusorgru/aurora/v4"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/sarchlab/rv32sim/asm"
	"github.com/sarchlab/rv32sim/config"
	"github.com/sarchlab/rv32sim/emu"
	"github.com/sarchlab/rv32sim/loader"
	"github.com/sarchlab/rv32sim/timing/core"
	"github.com/sarchlab/rv32sim/timing/pipeline"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	configPath string
	asmOnly    bool
	emulate    bool
	trace      bool
	regs       bool
	verbose    bool
	color      bool
}

type cli struct {
	opts   options
	stdout io.Writer
	stderr io.Writer
}

func run(args []string, stdout, stderr io.Writer) int {
	c := &cli{stdout: stdout, stderr: stderr}

	fs := flag.NewFlagSet("rv32sim", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&c.opts.configPath, "config", "", "Path to run configuration (YAML or JSON)")
	fs.BoolVar(&c.opts.asmOnly, "asm", false, "Assemble only and print machine code")
	fs.BoolVar(&c.opts.emulate, "emu", false, "Run on the functional emulator instead of the pipeline")
	fs.BoolVar(&c.opts.trace, "trace", false, "Print pipeline state every cycle")
	fs.BoolVar(&c.opts.regs, "regs", false, "Print registers and written memory at halt")
	fs.BoolVar(&c.opts.verbose, "v", false, "Verbose output")
	fs.BoolVar(&c.opts.color, "color", false, "Colour the report")

	fs.Usage = func() {
		_, _ = fmt.Fprintf(stderr, "Usage: rv32sim [options] <program.s|program.txt|program.elf>\n")
		_, _ = fmt.Fprintf(stderr, "\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if fs.NArg() < 1 {
		fs.Usage()
		return 1
	}

	if c.opts.verbose {
		tlog.SetVerbosity("asm,loader,pipeline,core")
	}

	path := fs.Arg(0)

	var err error
	if c.opts.asmOnly {
		err = c.assemble(path)
	} else {
		err = c.simulate(path)
	}

	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%s %v\n", c.paint("Error:", aurora.RedFg|aurora.BoldFm), err)
		return 1
	}

	return 0
}

func (c *cli) paint(s string, color aurora.Color) string {
	if !c.opts.color {
		return s
	}
	return aurora.Colorize(s, color).String()
}

// assemble prints one line per instruction: address, bit string and source,
// or the error for that line.
func (c *cli) assemble(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read source")
	}

	failed := 0

	for _, r := range asm.New().AssembleAll(asm.SplitLines(string(src))) {
		if r.Err != nil {
			failed++
			_, _ = fmt.Fprintf(c.stdout, "%4d: %s\n", r.Line, c.paint(r.String(), aurora.RedFg))
			continue
		}

		_, _ = fmt.Fprintf(c.stdout, "%08x: %s  %s\n", r.Address, r.String(), r.Source)
	}

	if failed > 0 {
		return errors.New("%d instructions failed to assemble", failed)
	}

	return nil
}

func (c *cli) loadConfig() (*config.Config, error) {
	if c.opts.configPath == "" {
		return config.DefaultConfig(), nil
	}

	cfg, err := config.LoadConfig(c.opts.configPath)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *cli) simulate(path string) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	prog, err := loader.Load(path)
	if err != nil {
		return errors.Wrap(err, "load program")
	}

	if c.opts.verbose {
		_, _ = fmt.Fprintf(c.stdout, "Loaded: %s (%v, %d instructions)\n", path, prog.Format, prog.Instructions.Len())
	}

	cfg = cfg.Clone()
	if len(prog.Data) != 0 {
		if cfg.InitialMemory == nil {
			cfg.InitialMemory = map[int]int32{}
		}
		for a, v := range prog.Data {
			cfg.InitialMemory[a] = v
		}
	}

	regFile, memory, err := cfg.Build()
	if err != nil {
		return err
	}

	if c.opts.emulate {
		err = c.runEmulation(prog, cfg, regFile, memory)
	} else {
		err = c.runTiming(prog, cfg, regFile, memory)
	}

	if c.opts.regs {
		c.printState(regFile, memory)
	}

	return err
}

// runEmulation runs the program in functional emulation mode.
func (c *cli) runEmulation(prog *loader.Program, cfg *config.Config, regFile *emu.RegFile, memory *emu.Memory) error {
	emulator := emu.NewEmulator(prog.Instructions, cfg.EmulatorOptions(regFile, memory)...)

	err := emulator.Run()

	_, _ = fmt.Fprintf(c.stdout, "Instructions executed: %d\n", emulator.InstructionCount())

	return err
}

// traceLine is the per-cycle record printed by -trace.
type traceLine struct {
	Cycle          uint64
	PC             uint32
	Flags          pipeline.StageFlags
	DataStall      bool
	ControlPending bool
	Locked         []int
	Retired        string
}

func newTraceLine(s pipeline.Snapshot) traceLine {
	t := traceLine{
		Cycle:          s.Cycle,
		PC:             s.PC,
		Flags:          s.Flags,
		DataStall:      s.DataStall,
		ControlPending: s.ControlPending,
	}

	for r, locked := range s.Locks {
		if locked {
			t.Locked = append(t.Locked, r)
		}
	}

	if s.Retired != nil && s.Retired.Inst != nil {
		t.Retired = fmt.Sprintf("%#x %v", s.Retired.PC, s.Retired.Inst)
	}

	return t
}

// runTiming runs the program in timing simulation mode.
func (c *cli) runTiming(prog *loader.Program, cfg *config.Config, regFile *emu.RegFile, memory *emu.Memory) error {
	opts := cfg.PipelineOptions()
	if c.opts.trace {
		opts = append(opts, pipeline.WithObserver(func(s pipeline.Snapshot) {
			_, _ = pretty.Fprintf(c.stdout, "%# v\n", newTraceLine(s))
		}))
	}

	pipe := pipeline.NewPipeline(prog.Instructions, regFile, memory, opts...)
	cpu := core.MakeBuilder().WithMaxCycles(cfg.MaxCycles).Build("Core", pipe)

	ctx := tlog.ContextWithSpan(context.Background(), tlog.Root())
	err := cpu.Run(ctx)

	// Get statistics
	stats := cpu.Stats()

	totalCycles := stats.Cycles
	if totalCycles == 0 {
		totalCycles = 1 // Avoid division by zero
	}

	pct := func(n uint64) float64 {
		return 100.0 * float64(n) / float64(totalCycles)
	}

	hazardBubbles := stats.Bubbles[pipeline.BubbleHazardRelease]
	branchBubbles := stats.Bubbles[pipeline.BubbleBranchResolve]

	out := c.stdout
	_, _ = fmt.Fprintf(out, "\n")
	_, _ = fmt.Fprintf(out, "%s\n", c.paint("Pipeline Report", aurora.BoldFm))
	_, _ = fmt.Fprintf(out, "Total Instructions: %d\n", stats.Instructions)
	_, _ = fmt.Fprintf(out, "Total Cycles: %d\n", stats.Cycles)
	_, _ = fmt.Fprintf(out, "CPI: %.2f\n", stats.CPI())
	_, _ = fmt.Fprintf(out, "Simulated Time: %.3e s\n", float64(stats.Time))
	_, _ = fmt.Fprintf(out, "\n")
	_, _ = fmt.Fprintf(out, "Breakdown:\n")
	_, _ = fmt.Fprintf(out, "  Fetch stalls:     %4d cycles (%5.1f%%)\n", stats.Stalls, pct(stats.Stalls))
	_, _ = fmt.Fprintf(out, "  Hazard bubbles:   %4d cycles (%5.1f%%)\n", hazardBubbles, pct(hazardBubbles))
	_, _ = fmt.Fprintf(out, "  Branch bubbles:   %4d cycles (%5.1f%%)\n", branchBubbles, pct(branchBubbles))
	_, _ = fmt.Fprintf(out, "\n")
	_, _ = fmt.Fprintf(out, "Pipeline Events:\n")
	_, _ = fmt.Fprintf(out, "  Data hazards:    %d\n", stats.DataHazards)
	_, _ = fmt.Fprintf(out, "  Control hazards: %d\n", stats.ControlHazards)
	_, _ = fmt.Fprintf(out, "  Redirects:       %d\n", stats.Redirects)

	return err
}

func (c *cli) printState(regFile *emu.RegFile, memory *emu.Memory) {
	out := c.stdout

	_, _ = fmt.Fprintf(out, "\n%s\n", c.paint("Registers", aurora.BoldFm))
	for r, v := range regFile.Snapshot() {
		if v != 0 {
			_, _ = fmt.Fprintf(out, "  x%-2d = %d\n", r, v)
		}
	}

	_, _ = fmt.Fprintf(out, "\n%s\n", c.paint("Memory", aurora.BoldFm))
	for _, a := range memory.WrittenAddrs() {
		v, _ := memory.Read(int64(a))
		_, _ = fmt.Fprintf(out, "  [%d] = %d\n", a, v)
	}
}
