// Command benchmark runs the rv32sim benchmark harness.
//
// Usage:
//
//	go run ./cmd/benchmark [flags]
//
// Flags:
//
//	-csv     Output results in CSV format (default: human-readable)
//	-json    Output results as JSON
//	-core    Run only the core benchmark set
//	-config  Machine configuration (YAML or JSON)
//	-color   Colour the human-readable report
//
// Example:
//
//	# Run all benchmarks with human-readable output
//	go run ./cmd/benchmark
//
//	# Output CSV for spreadsheet comparison
//	go run ./cmd/benchmark -csv > results.csv
//
// Every benchmark is also run on the functional emulator and its final
// state compared with the pipeline's.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/sarchlab/rv32sim/benchmarks"
	"github.com/sarchlab/rv32sim/config"
)

func main() {
	// Parse flags
	csvOutput := flag.Bool("csv", false, "Output results in CSV format")
	jsonOutput := flag.Bool("json", false, "Output results in JSON format")
	coreOnly := flag.Bool("core", false, "Run only the core benchmarks")
	configPath := flag.String("config", "", "Path to machine configuration (YAML or JSON)")
	color := flag.Bool("color", false, "Colour the report")
	verbose := flag.Bool("v", false, "Verbose output")
	flag.Parse()

	// Configure harness
	hc := benchmarks.DefaultConfig()
	hc.Output = os.Stdout
	hc.Color = *color
	hc.Verbose = *verbose

	if *configPath != "" {
		machine, err := config.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		hc.Machine = machine
	}

	// Create harness and add benchmarks
	harness := benchmarks.NewHarness(hc)
	if *coreOnly {
		harness.AddBenchmarks(benchmarks.GetCoreBenchmarks())
	} else {
		harness.AddBenchmarks(benchmarks.GetMicrobenchmarks())
	}

	// Run benchmarks
	results := harness.RunAll(context.Background())

	// Output results
	switch {
	case *jsonOutput:
		if err := harness.PrintJSON(results); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case *csvOutput:
		harness.PrintCSV(results)
	default:
		fmt.Println("rv32sim Benchmark Harness")
		fmt.Println("=========================")
		fmt.Printf("Data memory: %d words\n", hc.Machine.DataMemoryWords)
		fmt.Printf("Max cycles:  %d\n", hc.Machine.MaxCycles)
		fmt.Println("")

		harness.PrintResults(results)

		fmt.Println("=== Summary ===")
		fmt.Println("")
		fmt.Println("Expected characteristics:")
		fmt.Println("- independent_alu: CPI close to 1, no stalls")
		fmt.Println("- dependency_chain: three extra cycles per RAW hazard")
		fmt.Println("- branch_flush: fetch held one cycle per branch")
		fmt.Println("- function_call: every JAL/JALR redirects fetch")
	}

	for _, r := range results {
		if !r.Verified {
			os.Exit(1)
		}
	}
}
