// Validate the encoder and decoder - round-trips every mnemonic through
// assemble, decode, disassemble and assemble again, then measures decode
// throughput and allocations.
package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/sarchlab/rv32sim/asm"
	"github.com/sarchlab/rv32sim/insts"
)

var operands = map[insts.Format]string{
	insts.FormatR:  "x5, x6, x7",
	insts.FormatI:  "x5, x6, -17",
	insts.FormatIS: "x5, x6, 7",
	insts.FormatL:  "x5, 12(x6)",
	insts.FormatS:  "x7, -8(x6)",
	insts.FormatB:  "x5, x6, -3",
	insts.FormatU:  "x5, 74565",
	insts.FormatJ:  "x1, 100",
}

func main() {
	decoder := insts.NewDecoder()

	var (
		words    []uint32
		failures int
	)

	for _, m := range insts.Mnemonics() {
		spec, err := insts.Lookup(m)
		if err != nil {
			fmt.Printf("FAIL %-6s lookup: %v\n", m, err)
			failures++
			continue
		}

		line := m + " " + operands[spec.Format]

		word, err := asm.New().Assemble(line)
		if err != nil {
			fmt.Printf("FAIL %-6s assemble %q: %v\n", m, line, err)
			failures++
			continue
		}

		inst, err := decoder.Decode(word)
		if err != nil {
			fmt.Printf("FAIL %-6s decode %08x: %v\n", m, word, err)
			failures++
			continue
		}

		again, err := asm.New().Assemble(inst.String())
		if err != nil || again != word {
			fmt.Printf("FAIL %-6s %q -> %08x -> %q -> %08x (%v)\n", m, line, word, inst.String(), again, err)
			failures++
			continue
		}

		fmt.Printf("ok   %-6s %08x  %s\n", m, word, inst)
		words = append(words, word)
	}

	if len(words) == 0 {
		os.Exit(1)
	}

	// Warm up
	for i := 0; i < 1000; i++ {
		_, _ = decoder.Decode(words[i%len(words)])
	}

	runtime.GC()
	var m1, m2 runtime.MemStats
	runtime.ReadMemStats(&m1)

	start := time.Now()
	iterations := 100000

	for i := 0; i < iterations; i++ {
		for _, w := range words {
			_, _ = decoder.Decode(w)
		}
	}

	elapsed := time.Since(start)
	runtime.ReadMemStats(&m2)

	totalDecodes := iterations * len(words)
	allocations := m2.Mallocs - m1.Mallocs
	allocatedBytes := m2.TotalAlloc - m1.TotalAlloc

	fmt.Printf("\nEncoding Validation Results:\n")
	fmt.Printf("============================\n")
	fmt.Printf("Mnemonics round-tripped: %d/%d\n", len(words), len(insts.Mnemonics()))
	fmt.Printf("Total decode operations: %d\n", totalDecodes)
	fmt.Printf("Time elapsed: %v\n", elapsed)
	fmt.Printf("Decodes per second: %.0f\n", float64(totalDecodes)/elapsed.Seconds())
	fmt.Printf("Allocations per decode: %.3f\n", float64(allocations)/float64(totalDecodes))
	fmt.Printf("Bytes per decode: %.1f\n", float64(allocatedBytes)/float64(totalDecodes))

	if failures > 0 {
		fmt.Printf("\nFAILED: %d mnemonics did not round-trip\n", failures)
		os.Exit(1)
	}
}
