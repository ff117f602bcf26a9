package encoder

import "github.com/msedwar/m20/parser"

// generateSwi encodes a software-interrupt instruction, grounded on
// original_source/src/Assembler.cpp's generateSwi: top byte pattern 0x0F
// plus condition, low 24 bits carry the immediate vector directly.
func (e *Encoder) generateSwi(item *parser.Item) {
	code := uint32(0x0F000000) | conditionNibble(item.Cond) | (uint32(item.Imm) & 0x00FFFFFF)
	e.emitWord(item.Pos, code)
}
