package encoder

import "github.com/msedwar/m20/parser"

// RelocKind identifies the shape of a patch the assembler or linker must
// apply once a label's final address is known. Values are preserved from
// original_source/src/Instruction.h's InstructionType enum ordinals so the
// object-file tag space stays compatible even though only these five
// variants are ever emitted as relocation-table or fixup entries.
type RelocKind byte

const (
	RelocD2Label             RelocKind = 4
	RelocBranchRelativeLabel RelocKind = 10
	RelocMemRelativeLabel    RelocKind = 12
	RelocMemBaseOffsetLabel  RelocKind = 15
	RelocDataAddr            RelocKind = 23
)

// SymbolKind is the 1-byte tag on each symbol-table entry.
type SymbolKind byte

const (
	SymbolUndefined SymbolKind = 0
	SymbolDefined   SymbolKind = 1
	SymbolLocal     SymbolKind = 2
	SymbolEntry     SymbolKind = 3
)

// Section header textFlag values (object file §6.2).
const (
	sectionFlagData = 0x00
	sectionFlagText = 0xFF
)

const (
	magic        = 0x7F4D3230 // 0x7F 'M' '2' '0'
	fileVersion  = 0x00000001
)

// dataOpcode maps a D3/D2/D1/EMPTY Command to its bits[24:20] opcode field.
var dataOpcode = map[parser.Command]uint32{
	parser.CmdNOOP: 0x00, parser.CmdADD: 0x01, parser.CmdADC: 0x02, parser.CmdSUB: 0x03,
	parser.CmdSBC: 0x04, parser.CmdMUL: 0x05, parser.CmdDIV: 0x06, parser.CmdUDV: 0x07,
	parser.CmdOR: 0x08, parser.CmdAND: 0x09, parser.CmdXOR: 0x0A, parser.CmdNOR: 0x0B,
	parser.CmdBIC: 0x0C, parser.CmdROR: 0x0D, parser.CmdLSL: 0x0E, parser.CmdLSR: 0x0F,
	parser.CmdASR: 0x10, parser.CmdMOV: 0x11, parser.CmdMVN: 0x12, parser.CmdCMP: 0x13,
	parser.CmdCMN: 0x14, parser.CmdTST: 0x15, parser.CmdTEQ: 0x16, parser.CmdPUSH: 0x17,
	parser.CmdPOP: 0x18, parser.CmdSRL: 0x19, parser.CmdSRS: 0x1A, parser.CmdHALT: 0x1F,
}

// loadOpcode maps a MEM_INSTR Command to its bits[22:20] opcode field.
var loadOpcode = map[parser.Command]uint32{
	parser.CmdLDR: 0, parser.CmdLDRB: 1, parser.CmdLDRH: 2, parser.CmdLDRSB: 3,
	parser.CmdLDRSH: 4, parser.CmdSTR: 5, parser.CmdSTRB: 6, parser.CmdSTRH: 7,
}

// conditionNibble places a Conditional into bits[31:28]. Conditional's
// iota ordering (EQ=0 .. AL=14) already matches the architectural encoding.
func conditionNibble(cond parser.Conditional) uint32 {
	return uint32(cond) << 28
}
