package pipeline

import (
	"github.com/sarchlab/rv32sim/emu"
	"github.com/sarchlab/rv32sim/insts"
)

// BubbleReason tags why a bubble cycle was inserted.
type BubbleReason uint8

// Bubble reasons.
const (
	// BubbleHazardRelease follows the writeback that releases a locked
	// register.
	BubbleHazardRelease BubbleReason = iota
	// BubbleBranchResolve follows the execution of a branch or jump.
	BubbleBranchResolve

	NumBubbleReasons
)

func (r BubbleReason) String() string {
	switch r {
	case BubbleHazardRelease:
		return "hazard-release"
	case BubbleBranchResolve:
		return "branch-resolve"
	default:
		return "unknown"
	}
}

// InFlight describes the destination of the instruction one step ahead of
// decode.
type InFlight struct {
	Valid    bool
	Rd       uint8
	RegWrite bool
}

// HazardResult reports the hazards found for one decoded instruction.
type HazardResult struct {
	// DataHazard is set when a source register is the in-flight destination.
	DataHazard bool
	// ControlHazard is set for branches and jumps.
	ControlHazard bool
	// Reg is the register locked by a data hazard.
	Reg uint8
}

// HazardUnit tracks register locks, the two stall flags and the pending
// bubble queue.
//
// Registers are read in execute and writeback runs first in each cycle, so
// only the instruction directly ahead of decode can still owe a value.
type HazardUnit struct {
	locks          [emu.NumRegs]bool
	dataStall      bool
	controlPending bool
	bubbles        []BubbleReason

	hardwireZero bool
}

// NewHazardUnit creates a new hazard detection unit. With hardwireZero set,
// x0 is never locked.
func NewHazardUnit(hardwireZero bool) *HazardUnit {
	return &HazardUnit{hardwireZero: hardwireZero}
}

// Check inspects an instruction entering the back end of the pipeline and
// raises the stall flags it needs.
func (h *HazardUnit) Check(inst *insts.Instruction, ctrl ControlWord, ahead InFlight) HazardResult {
	var r HazardResult

	if ahead.Valid && ahead.RegWrite && !(h.hardwireZero && ahead.Rd == 0) {
		reads := (inst.ReadsRs1() && inst.Rs1 == ahead.Rd) ||
			(inst.ReadsRs2() && inst.Rs2 == ahead.Rd)

		if reads {
			h.locks[ahead.Rd] = true
			h.dataStall = true
			r.DataHazard = true
			r.Reg = ahead.Rd
		}
	}

	if ctrl.Branch || ctrl.Jump {
		h.controlPending = true
		r.ControlHazard = true
	}

	return r
}

// Release is called when rd is written back. If rd was locked it is
// unlocked, the data stall is cleared and a bubble is queued. It reports
// whether a lock was released.
func (h *HazardUnit) Release(rd uint8) bool {
	if int(rd) >= len(h.locks) || !h.locks[rd] {
		return false
	}

	h.locks[rd] = false
	h.dataStall = false
	h.bubbles = append(h.bubbles, BubbleHazardRelease)

	return true
}

// Resolve is called when a branch or jump executes. It clears the pending
// control hazard and queues a bubble.
func (h *HazardUnit) Resolve() {
	h.controlPending = false
	h.bubbles = append(h.bubbles, BubbleBranchResolve)
}

// ConsumeBubble removes the oldest pending bubble.
func (h *HazardUnit) ConsumeBubble() (BubbleReason, bool) {
	if len(h.bubbles) == 0 {
		return 0, false
	}

	r := h.bubbles[0]
	h.bubbles = h.bubbles[1:]

	return r, true
}

// BubblePending reports whether any bubble is waiting.
func (h *HazardUnit) BubblePending() bool {
	return len(h.bubbles) > 0
}

// PendingBubbles returns the number of queued bubbles for a reason.
func (h *HazardUnit) PendingBubbles(reason BubbleReason) int {
	n := 0
	for _, b := range h.bubbles {
		if b == reason {
			n++
		}
	}
	return n
}

// DataStall reports whether a data hazard is stalling the front end.
func (h *HazardUnit) DataStall() bool {
	return h.dataStall
}

// ControlPending reports whether a branch or jump is unresolved.
func (h *HazardUnit) ControlPending() bool {
	return h.controlPending
}

// Stalled reports whether either hazard flag is set.
func (h *HazardUnit) Stalled() bool {
	return h.dataStall || h.controlPending
}

// Locked reports whether reg is locked.
func (h *HazardUnit) Locked(reg uint8) bool {
	return int(reg) < len(h.locks) && h.locks[reg]
}

// Locks returns a copy of the lock table.
func (h *HazardUnit) Locks() [emu.NumRegs]bool {
	return h.locks
}

// Reset clears all hazard state.
func (h *HazardUnit) Reset() {
	h.locks = [emu.NumRegs]bool{}
	h.dataStall = false
	h.controlPending = false
	h.bubbles = nil
}
