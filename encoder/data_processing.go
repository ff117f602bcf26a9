package encoder

import "github.com/msedwar/m20/parser"

// generateDataProcessing encodes the D3/D2/D1/EMPTY instruction shapes,
// grounded on original_source/src/Assembler.cpp's generateDataProcessing.
// Bit layout (spec §4.3):
//
//	[31:28] condition   [26] status-update   [25] has-immediate
//	[24:20] opcode      [19:16] rd           [15:12] rn (D3 only)
//	operand field: [11:0] D3, [15:0] D2, [19:0] D1, none for EMPTY
func (e *Encoder) generateDataProcessing(item *parser.Item) {
	code := conditionNibble(item.Cond) | dataOpcode[item.Command]<<20
	if item.UpdateStatus {
		code |= 0x04000000
	}

	var mask uint32
	switch item.Kind {
	case parser.ItemD3:
		mask = 0x00000FFF
	case parser.ItemD2:
		mask = 0x0000FFFF
	case parser.ItemD1:
		mask = 0x000FFFFF
	case parser.ItemEmpty:
		mask = 0x00000000
	}

	if item.Kind != parser.ItemEmpty {
		rd := uint32(item.Rd)
		if item.Command == parser.CmdSRS {
			// SRS's destination is a status register (st=16/sv=17), which
			// doesn't fit the 4-bit rd field; remap to 0/1 since SRS never
			// addresses a general-purpose rd.
			rd -= uint32(parser.RegST)
		}
		code |= rd << 16 & 0x000F0000
	}
	if item.Kind == parser.ItemD3 {
		code |= uint32(item.Rn)<<12 & 0x0000F000
	}

	switch item.Operand {
	case parser.OperandReg:
		code |= uint32(item.Rm) & mask
	case parser.OperandImm:
		code |= 0x02000000
		code |= uint32(item.Imm) & mask
	case parser.OperandLabel:
		code |= 0x02000000
		e.pushFixup(item.Pos, item.Label, RelocD2Label, uint32(len(e.bytes)))
	}

	e.emitWord(item.Pos, code)
}
