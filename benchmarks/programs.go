package benchmarks

import (
	"fmt"
	"strings"
)

// GetMicrobenchmarks returns the standard set of programs. Each one targets
// a specific pipeline behaviour.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		sumOfN(),
		fibonacci(),
		countLoop(),
		independentALU(),
		dependencyChain(),
		loadUse(),
		branchFlush(),
		functionCall(),
	}
}

// GetCoreBenchmarks returns a minimal set for quick validation: a loop, a
// hazard chain and branch-heavy code.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		sumOfN(),
		dependencyChain(),
		branchFlush(),
	}
}

// Sum of n numbers. n is read from word 11 and the sum is stored to word 0.
func sumOfN() Benchmark {
	return Benchmark{
		Name:        "sum_of_n",
		Description: "sum 1..n in a loop - taken and not-taken branches",
		Source: []string{
			"lw x5, 11(x6)",
			"addi x1, x1, 1",
			"addi x5, x5, 1",
			"sum_loop:",
			"beq x1, x5, done",
			"add x2, x2, x1",
			"addi x1, x1, 1",
			"jal x3, sum_loop",
			"done:",
			"sw x2, 0(x31)",
		},
		Memory:       map[int]int32{11: 10},
		ExpectedRegs: map[int]int32{2: 55},
		ExpectedMem:  map[int]int32{0: 55},
	}
}

// Fibonacci. n is read from word 0 and F(n) is stored to word 1.
func fibonacci() Benchmark {
	return Benchmark{
		Name:        "fibonacci",
		Description: "iterative F(n) - chained register dependencies in a loop",
		Source: []string{
			"lw x1, 0(x0)",
			"beq x1, x0, done",
			"addi x3, x3, 1",
			"beq x1, x3, done",
			"addi x2, x0, 1",
			"addi x4, x4, 1",
			"for:",
			"beq x2, x1, done",
			"add x3, x4, x5",
			"add x5, x4, x0",
			"add x4, x3, x0",
			"addi x2, x2, 1",
			"jal x6, for",
			"done:",
			"sw x3, 1(x0)",
		},
		Memory:       map[int]int32{0: 10, 1: 1},
		ExpectedRegs: map[int]int32{3: 55},
		ExpectedMem:  map[int]int32{1: 55},
	}
}

func countLoop() Benchmark {
	return Benchmark{
		Name:        "count_loop",
		Description: "count to n - one branch, one add and one jump per iteration",
		Source: []string{
			"lw x5, 0(x31)",
			"loop: beq x1, x5, done",
			"addi x1, x1, 1",
			"jal x3, loop",
			"done: sw x1, 1(x31)",
		},
		Memory:       map[int]int32{0: 10},
		ExpectedRegs: map[int]int32{1: 10},
		ExpectedMem:  map[int]int32{1: 10},
	}
}

// 20 increments spread over five registers, never back to back.
func independentALU() Benchmark {
	var src []string
	for i := 0; i < 4; i++ {
		for r := 1; r <= 5; r++ {
			src = append(src, fmt.Sprintf("addi x%d, x%d, 1", r, r))
		}
	}

	return Benchmark{
		Name:         "independent_alu",
		Description:  "20 ADDIs with no adjacent dependency - ALU throughput",
		Source:       src,
		ExpectedRegs: map[int]int32{1: 4, 2: 4, 3: 4, 4: 4, 5: 4},
	}
}

func dependencyChain() Benchmark {
	return Benchmark{
		Name:         "dependency_chain",
		Description:  "20 dependent ADDIs (x1 = x1 + 1) - stall cost per RAW hazard",
		Source:       strings.Split(strings.Repeat("addi x1, x1, 1\n", 20), "\n")[:20],
		ExpectedRegs: map[int]int32{1: 20},
	}
}

func loadUse() Benchmark {
	return Benchmark{
		Name:        "load_use",
		Description: "load followed by its consumer, then a dependent store",
		Source: []string{
			"lw x1, 0(x0)",
			"add x2, x1, x1",
			"sw x2, 1(x0)",
		},
		Memory:       map[int]int32{0: 21},
		ExpectedRegs: map[int]int32{2: 42},
		ExpectedMem:  map[int]int32{1: 42},
	}
}

// The instruction after the loop-closing branch is never executed.
func branchFlush() Benchmark {
	return Benchmark{
		Name:        "branch_flush",
		Description: "loop closed by a taken BEQ - fetch held until branch resolves",
		Source: []string{
			"addi x5, x0, 10",
			"loop: beq x1, x5, done",
			"addi x1, x1, 1",
			"beq x0, x0, loop",
			"addi x9, x0, 1",
			"done: sw x1, 2(x0)",
		},
		ExpectedRegs: map[int]int32{1: 10, 9: 0},
		ExpectedMem:  map[int]int32{2: 10},
	}
}

func functionCall() Benchmark {
	return Benchmark{
		Name:        "function_call",
		Description: "JAL into a leaf function and JALR back",
		Source: []string{
			"addi x10, x0, 5",
			"jal x1, double",
			"sw x10, 3(x0)",
			"jal x7, end",
			"double: add x10, x10, x10",
			"jalr x6, x1, 0",
			"end:",
		},
		ExpectedRegs: map[int]int32{10: 10, 1: 8},
		ExpectedMem:  map[int]int32{3: 10},
	}
}
