package vm

import "fmt"

// CPU holds the M20 processor's register file: 13 general registers, four
// banks each of sp/lp/sv selected by the current mode, one unbanked pc, and
// the status word (NZCV flags in the top nibble, mode in the low two bits).
// Grounded on original_source/src/Simulator.h's private register fields.
type CPU struct {
	R  [13]uint32 // r0..r12
	SP [4]uint32  // r13, banked by mode
	LP [4]uint32  // r14, banked by mode
	PC uint32     // r15
	ST uint32     // status word
	SV [4]uint32  // banked supervisor-only scratch register

	Halt                 bool
	InstructionsExecuted uint64
}

// NewCPU returns a CPU with all registers zeroed; callers must still run
// Reset to establish the boot-time SP/LP/status values before simulating.
func NewCPU() *CPU {
	return &CPU{}
}

// Mode extracts the current processor mode from the status word's low two
// bits, grounded on Simulator.h's getMode().
func (c *CPU) Mode() int {
	switch c.ST & ModeAbt {
	case ModeSvr:
		return 1
	case ModeInt:
		return 2
	case ModeAbt:
		return 3
	default:
		return 0
	}
}

// GetRegister returns the value of general register reg (0-12), the
// current mode's sp (13) or lp (14), or pc (15). An out-of-range index only
// arises from a corrupted image (the assembler never emits one); it's
// reported the same way GetStatus reports an invalid status register,
// rather than panicking.
func (c *CPU) GetRegister(reg int) (uint32, error) {
	switch {
	case reg >= 0 && reg <= 12:
		return c.R[reg], nil
	case reg == 13:
		return c.SP[c.Mode()], nil
	case reg == 14:
		return c.LP[c.Mode()], nil
	case reg == 15:
		return c.PC, nil
	default:
		return 0, fmt.Errorf("vm: register index %d out of range", reg)
	}
}

// SetRegister stores value into general register reg, the current mode's sp
// or lp, or pc.
func (c *CPU) SetRegister(reg int, value uint32) error {
	switch {
	case reg >= 0 && reg <= 12:
		c.R[reg] = value
	case reg == 13:
		c.SP[c.Mode()] = value
	case reg == 14:
		c.LP[c.Mode()] = value
	case reg == 15:
		c.PC = value
	default:
		return fmt.Errorf("vm: register index %d out of range", reg)
	}
	return nil
}

// GetStatus returns the status word (reg 0) or the current mode's sv
// register (reg 1); sv is only addressable outside user mode, grounded on
// Simulator.h's getStatus().
func (c *CPU) GetStatus(reg int) (uint32, error) {
	switch reg {
	case 0:
		return c.ST, nil
	case 1:
		if c.Mode() == 0 {
			return 0, fmt.Errorf("sv register is not addressable in user mode")
		}
		return c.SV[c.Mode()], nil
	default:
		return 0, fmt.Errorf("vm: status register index %d out of range", reg)
	}
}

// SetStatus writes the status word or the current mode's sv register.
func (c *CPU) SetStatus(reg int, value uint32) error {
	switch reg {
	case 0:
		c.ST = value
		return nil
	case 1:
		if c.Mode() == 0 {
			return fmt.Errorf("sv register is not addressable in user mode")
		}
		c.SV[c.Mode()] = value
		return nil
	default:
		return fmt.Errorf("vm: status register index %d out of range", reg)
	}
}

// Branch sets pc directly, used by unconditional and register-indirect
// branches.
func (c *CPU) Branch(address uint32) {
	c.PC = address
}

// Flags decomposes the status word's NZCV bits.
func (c *CPU) Flags() (n, z, carry, v bool) {
	return c.ST&stN != 0, c.ST&stZ != 0, c.ST&stC != 0, c.ST&stV != 0
}
