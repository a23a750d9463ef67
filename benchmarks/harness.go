// Package benchmarks provides the benchmark harness that runs RV32I programs
// on the cycle-accurate core and validates them against the emulator.
package benchmarks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/kr/pretty"
	"github.com/logrusorgru/aurora/v4"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/sarchlab/rv32sim/asm"
	"github.com/sarchlab/rv32sim/config"
	"github.com/sarchlab/rv32sim/emu"
	"github.com/sarchlab/rv32sim/timing/core"
	"github.com/sarchlab/rv32sim/timing/pipeline"
)

// BenchmarkResult holds the timing results for a single benchmark run.
type BenchmarkResult struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark measures
	Description string `json:"description"`

	// SimulatedCycles is the total cycle count from the timing simulator
	SimulatedCycles uint64 `json:"simulated_cycles"`

	// InstructionsRetired is the number of completed instructions
	InstructionsRetired uint64 `json:"instructions_retired"`

	// CPI is cycles per instruction
	CPI float64 `json:"cpi"`

	// StallCycles is the number of cycles fetch was held
	StallCycles uint64 `json:"stall_cycles"`

	// DataHazards is the number of RAW hazards resolved by stalling
	DataHazards uint64 `json:"data_hazards"`

	// ControlHazards is the number of branches and jumps decoded
	ControlHazards uint64 `json:"control_hazards"`

	// HazardBubbles and BranchBubbles count bubble cycles by reason
	HazardBubbles uint64 `json:"hazard_bubbles"`
	BranchBubbles uint64 `json:"branch_bubbles"`

	// Redirects is the number of taken branches and jumps
	Redirects uint64 `json:"redirects"`

	// EmulatorInstructions is the instruction count of the reference run
	EmulatorInstructions uint64 `json:"emulator_instructions"`

	// Verified is set when the final state matched both the expected
	// values and the emulator
	Verified bool `json:"verified"`

	// Mismatches lists the differences found during validation
	Mismatches []string `json:"mismatches,omitempty"`

	// Error is the fatal error of the run, if any
	Error string `json:"error,omitempty"`

	// WallTime is the actual time taken to run the simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

// Benchmark defines a single benchmark program.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark measures
	Description string

	// Source is the assembly program
	Source []string

	// Memory and Registers are applied over the configured initial state
	Memory    map[int]int32
	Registers map[int]int32

	// ExpectedRegs and ExpectedMem are checked after the run
	ExpectedRegs map[int]int32
	ExpectedMem  map[int]int32
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// Machine is the machine configuration every benchmark starts from
	Machine *config.Config

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Color enables ANSI colours in PrintResults
	Color bool

	// Verbose enables detailed output
	Verbose bool
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		Machine: config.DefaultConfig(),
		Output:  os.Stdout,
	}
}

// Harness runs timing benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Machine == nil {
		config.Machine = DefaultConfig().Machine
	}
	return &Harness{
		config:     config,
		benchmarks: []Benchmark{},
	}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes all benchmarks and returns results.
func (h *Harness) RunAll(ctx context.Context) []BenchmarkResult {
	results := make([]BenchmarkResult, 0, len(h.benchmarks))

	for _, bench := range h.benchmarks {
		result := h.runBenchmark(ctx, bench)
		results = append(results, result)

		tlog.V("bench").Printw("benchmark done", "name", result.Name,
			"cycles", result.SimulatedCycles, "verified", result.Verified)
	}

	return results
}

// machine returns the benchmark's initial state.
func (h *Harness) machine(bench Benchmark) (*emu.RegFile, *emu.Memory, error) {
	cfg := h.config.Machine.Clone()

	if cfg.InitialMemory == nil {
		cfg.InitialMemory = map[int]int32{}
	}
	for a, v := range bench.Memory {
		cfg.InitialMemory[a] = v
	}

	if cfg.InitialRegisters == nil {
		cfg.InitialRegisters = map[int]int32{}
	}
	for r, v := range bench.Registers {
		cfg.InitialRegisters[r] = v
	}

	return cfg.Build()
}

// runBenchmark executes a single benchmark on the core and on the emulator.
func (h *Harness) runBenchmark(ctx context.Context, bench Benchmark) BenchmarkResult {
	result := BenchmarkResult{
		Name:        bench.Name,
		Description: bench.Description,
	}

	fail := func(err error) BenchmarkResult {
		result.Error = err.Error()
		return result
	}

	words, err := asm.Words(asm.New().AssembleAll(bench.Source))
	if err != nil {
		return fail(errors.Wrap(err, "assemble %v", bench.Name))
	}

	regFile, memory, err := h.machine(bench)
	if err != nil {
		return fail(err)
	}

	pipe := pipeline.NewPipeline(emu.NewInstructionMemory(words), regFile, memory,
		h.config.Machine.PipelineOptions()...)
	c := core.MakeBuilder().
		WithMaxCycles(h.config.Machine.MaxCycles).
		Build(bench.Name, pipe)

	// Run simulation and measure time
	start := time.Now()
	runErr := c.Run(ctx)
	result.WallTime = time.Since(start)

	// Collect statistics
	stats := pipe.Stats()
	result.SimulatedCycles = stats.Cycles
	result.InstructionsRetired = stats.Instructions
	result.CPI = stats.CPI()
	result.StallCycles = stats.Stalls
	result.DataHazards = stats.DataHazards
	result.ControlHazards = stats.ControlHazards
	result.HazardBubbles = stats.Bubbles[pipeline.BubbleHazardRelease]
	result.BranchBubbles = stats.Bubbles[pipeline.BubbleBranchResolve]
	result.Redirects = stats.Redirects

	if runErr != nil {
		return fail(runErr)
	}

	refRegs, refMem, err := h.machine(bench)
	if err != nil {
		return fail(err)
	}

	ref := emu.NewEmulator(emu.NewInstructionMemory(words), h.config.Machine.EmulatorOptions(refRegs, refMem)...)
	if err := ref.Run(); err != nil {
		return fail(errors.Wrap(err, "emulator"))
	}

	result.EmulatorInstructions = ref.InstructionCount()
	result.Mismatches = compare(bench, regFile, memory, refRegs, refMem)
	result.Verified = len(result.Mismatches) == 0

	return result
}

// compare checks the pipeline's final state against the expected values and
// the emulator's final state.
func compare(bench Benchmark, regs *emu.RegFile, mem *emu.Memory, refRegs *emu.RegFile, refMem *emu.Memory) []string {
	var diffs []string

	for r, want := range bench.ExpectedRegs {
		if got := regs.ReadReg(uint8(r)); got != want {
			diffs = append(diffs, fmt.Sprintf("x%d: expected %d, got %d", r, want, got))
		}
	}

	for a, want := range bench.ExpectedMem {
		if got, err := mem.Read(int64(a)); err != nil || got != want {
			diffs = append(diffs, fmt.Sprintf("mem[%d]: expected %d, got %d", a, want, got))
		}
	}

	for _, d := range pretty.Diff(refRegs.Snapshot(), regs.Snapshot()) {
		diffs = append(diffs, "registers vs emulator: "+d)
	}

	for _, d := range pretty.Diff(refMem.Snapshot(), mem.Snapshot()) {
		diffs = append(diffs, "memory vs emulator: "+d)
	}

	return diffs
}

func (h *Harness) colorize(s string, c aurora.Color) string {
	if !h.config.Color {
		return s
	}
	return aurora.Colorize(s, c).String()
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	out := h.config.Output

	_, _ = fmt.Fprintln(out, h.colorize("=== RV32I Pipeline Benchmark Results ===", aurora.BoldFm))
	_, _ = fmt.Fprintln(out, "")

	for _, r := range results {
		status := h.colorize("PASS", aurora.GreenFg|aurora.BoldFm)
		if !r.Verified {
			status = h.colorize("FAIL", aurora.RedFg|aurora.BrightFg|aurora.BoldFm)
		}

		_, _ = fmt.Fprintf(out, "Benchmark: %s [%s]\n", r.Name, status)
		_, _ = fmt.Fprintf(out, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintln(out, "  --- Timing ---")
		_, _ = fmt.Fprintf(out, "  Simulated Cycles:     %d\n", r.SimulatedCycles)
		_, _ = fmt.Fprintf(out, "  Instructions Retired: %d\n", r.InstructionsRetired)
		_, _ = fmt.Fprintf(out, "  CPI:                  %.3f\n", r.CPI)
		_, _ = fmt.Fprintf(out, "  Stall Cycles:         %d\n", r.StallCycles)
		_, _ = fmt.Fprintf(out, "  Data Hazards:         %d\n", r.DataHazards)
		_, _ = fmt.Fprintf(out, "  Control Hazards:      %d\n", r.ControlHazards)
		_, _ = fmt.Fprintf(out, "  Bubbles (hazard):     %d\n", r.HazardBubbles)
		_, _ = fmt.Fprintf(out, "  Bubbles (branch):     %d\n", r.BranchBubbles)
		_, _ = fmt.Fprintf(out, "  Redirects:            %d\n", r.Redirects)

		if r.Error != "" {
			_, _ = fmt.Fprintf(out, "  Error: %s\n", h.colorize(r.Error, aurora.RedFg))
		}

		for _, m := range r.Mismatches {
			_, _ = fmt.Fprintf(out, "  Mismatch: %s\n", h.colorize(m, aurora.YellowFg))
		}

		if h.config.Verbose {
			_, _ = fmt.Fprintf(out, "  Emulator Instructions: %d\n", r.EmulatorInstructions)
			_, _ = fmt.Fprintf(out, "  Wall Time: %v\n", r.WallTime)
		}
		_, _ = fmt.Fprintln(out, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,cycles,instructions,cpi,stalls,data_hazards,control_hazards,hazard_bubbles,branch_bubbles,redirects,verified")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%d,%d,%.3f,%d,%d,%d,%d,%d,%d,%t\n",
			r.Name,
			r.SimulatedCycles,
			r.InstructionsRetired,
			r.CPI,
			r.StallCycles,
			r.DataHazards,
			r.ControlHazards,
			r.HazardBubbles,
			r.BranchBubbles,
			r.Redirects,
			r.Verified,
		)
	}
}

// PrintJSON outputs benchmark results as an indented JSON array.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	enc := json.NewEncoder(h.config.Output)
	enc.SetIndent("", "  ")

	if err := enc.Encode(results); err != nil {
		return errors.Wrap(err, "encode results")
	}

	return nil
}
