package encoder

import "github.com/msedwar/m20/parser"

// generateDataLoad encodes the six MEM_INSTR addressing-mode shapes (spec
// §4.2/§4.3), grounded on original_source/src/Assembler.cpp's
// generateDataLoad. Bit layout:
//
//	[31:28] condition   bit 27 set (0x08000000)
//	[25] has-immediate  [24] has-base
//	[19:16] rd          [15:12] rn (when has-base)
//	operand field: [15:0] for direct-index/PC-relative forms, [11:0] for
//	base-relative forms.
func (e *Encoder) generateDataLoad(item *parser.Item) {
	code := uint32(0x08000000) | conditionNibble(item.Cond) | loadOpcode[item.Command]<<20
	code |= uint32(item.Rd) << 16 & 0x000F0000

	wideMask := item.AddrMode == parser.AddrDirectIndex || item.AddrMode == parser.AddrPCImm || item.AddrMode == parser.AddrPCLabel
	mask := uint32(0x00000FFF)
	if wideMask {
		mask = 0x0000FFFF
	}

	if item.HasBase {
		code |= 0x01000000
		code |= uint32(item.Rn) << 12 & 0x0000F000
	}

	switch item.AddrMode {
	case parser.AddrDirectIndex:
		code |= uint32(item.Rm) & mask
	case parser.AddrBaseIndex:
		code |= uint32(item.Rm) & mask
	case parser.AddrBaseOffset:
		code |= 0x02000000
		code |= uint32(item.Imm) & mask
	case parser.AddrBaseLabel:
		code |= 0x02000000
		e.pushFixup(item.Pos, item.Label, RelocMemBaseOffsetLabel, uint32(len(e.bytes)))
	case parser.AddrPCImm:
		code |= 0x02000000
		code |= uint32(item.Imm) & mask
	case parser.AddrPCLabel:
		code |= 0x02000000
		e.pushFixup(item.Pos, item.Label, RelocMemRelativeLabel, uint32(len(e.bytes)))
	}

	e.emitWord(item.Pos, code)
}
