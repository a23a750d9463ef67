// Package main provides the entry point for rv32sim.
// rv32sim is an RV32I assembler and cycle-accurate 5-stage pipeline
// simulator built on Akita.
//
// For the full CLI, use: go run ./cmd/rv32sim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("rv32sim - RV32I Pipeline Simulator")
	fmt.Println("Built on Akita simulation framework")
	fmt.Println("")
	fmt.Println("Usage: rv32sim [options] <program.s|program.txt|program.elf>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -asm       Assemble only and print machine code")
	fmt.Println("  -emu       Run on the functional emulator")
	fmt.Println("  -trace     Print pipeline state every cycle")
	fmt.Println("  -regs      Print registers and written memory at halt")
	fmt.Println("  -config    Path to run configuration (YAML or JSON)")
	fmt.Println("  -color     Colour the report")
	fmt.Println("  -v         Verbose output")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/rv32sim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/rv32sim' instead.")
	}
}
