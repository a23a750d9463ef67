// Package main provides a profiling wrapper for rv32sim to identify
// simulator performance bottlenecks.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime/pprof"
	"time"

	"github.com/sarchlab/rv32sim/config"
	"github.com/sarchlab/rv32sim/emu"
	"github.com/sarchlab/rv32sim/loader"
	"github.com/sarchlab/rv32sim/timing/pipeline"
)

var (
	emulate    = flag.Bool("emu", false, "Profile the functional emulator instead of the pipeline")
	cpuProfile = flag.String("cpuprofile", "", "write cpu profile to file")
	memProfile = flag.String("memprofile", "", "write memory profile to file")
	duration   = flag.Duration("duration", 30*time.Second, "max duration to run (for profiling)")
	maxCycles  = flag.Uint64("max-cycles", 0, "max cycles (instructions with -emu) to run (0 = unlimited)")
	repeat     = flag.Int("repeat", 1, "number of times to run the program")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: profile [options] <program>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	programPath := flag.Arg(0)

	prog, err := loader.Load(programPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading program: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Loaded: %s (%d instructions)\n", programPath, prog.Instructions.Len())

	// Start CPU profiling if requested
	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	cfg := config.DefaultConfig()
	cfg.MaxCycles = *maxCycles
	cfg.InitialMemory = prog.Data

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	start := time.Now()

	var (
		count  uint64
		cycles uint64
		runErr error
	)

	for i := 0; i < *repeat && runErr == nil; i++ {
		var n, c uint64
		if *emulate {
			n, runErr = runEmulationProfile(prog, cfg)
		} else {
			n, c, runErr = runTimingProfile(ctx, prog, cfg)
		}
		count += n
		cycles += c
	}

	elapsed := time.Since(start)

	// Write memory profile if requested
	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating memory profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.WriteHeapProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing memory profile: %v\n", err)
		}
	}

	fmt.Printf("\nProfiling Results:\n")
	if runErr != nil {
		fmt.Printf("Stopped: %v\n", runErr)
	}
	fmt.Printf("Instructions executed: %d\n", count)
	if cycles > 0 {
		fmt.Printf("Cycles simulated: %d\n", cycles)
		fmt.Printf("Cycles/second: %.0f\n", float64(cycles)/elapsed.Seconds())
	}
	fmt.Printf("Elapsed time: %v\n", elapsed)
	if count > 0 {
		fmt.Printf("Instructions/second: %.0f\n", float64(count)/elapsed.Seconds())
	}
}

// runEmulationProfile runs the program in functional emulation mode.
func runEmulationProfile(prog *loader.Program, cfg *config.Config) (uint64, error) {
	regFile, memory, err := cfg.Build()
	if err != nil {
		return 0, err
	}

	emulator := emu.NewEmulator(prog.Instructions, cfg.EmulatorOptions(regFile, memory)...)
	err = emulator.Run()

	return emulator.InstructionCount(), err
}

// runTimingProfile runs the program on the pipeline until it halts or ctx
// times out.
func runTimingProfile(ctx context.Context, prog *loader.Program, cfg *config.Config) (uint64, uint64, error) {
	regFile, memory, err := cfg.Build()
	if err != nil {
		return 0, 0, err
	}

	pipe := pipeline.NewPipeline(prog.Instructions, regFile, memory, cfg.PipelineOptions()...)
	err = pipe.Run(ctx)

	stats := pipe.Stats()

	return stats.Instructions, stats.Cycles, err
}
