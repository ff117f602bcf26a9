package encoder

import "github.com/msedwar/m20/parser"

// generateBranch encodes B/BWL, grounded on
// original_source/src/Assembler.cpp's generateBranch. Bit layout (spec §4.3):
//
//	[31:28] condition   top byte pattern 0x0C
//	[24] link (BWL sets it, B clears it)
//	[23] has-immediate
//	[22:0] signed 23-bit PC-relative word offset when relative,
//	       raw #imm16 when absolute, or register index in [3:0] when
//	       register-indirect.
func (e *Encoder) generateBranch(item *parser.Item) {
	code := uint32(0x0C000000) | conditionNibble(item.Cond)
	if item.Command == parser.CmdBWL {
		code |= 0x01000000
	}

	switch item.Operand {
	case parser.OperandImm:
		code |= 0x00800000
		code |= uint32(item.Imm) & 0x007FFFFF
	case parser.OperandLabel:
		code |= 0x00800000
		e.pushFixup(item.Pos, item.Label, RelocBranchRelativeLabel, uint32(len(e.bytes)))
	case parser.OperandReg:
		code |= uint32(item.Rm) & 0xF
	}

	e.emitWord(item.Pos, code)
}
