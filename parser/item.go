package parser

// ItemKind classifies a parsed statement. Items are a flat list — there is
// no syntax tree — matching spec's data model (§3) and
// original_source/src/Instruction.h's InstructionType split between
// directive and instruction-shape variants.
type ItemKind int

const (
	ItemLabelDecl ItemKind = iota
	ItemGlobal
	ItemExtern
	ItemEntry
	ItemSection
	ItemSpace
	ItemData
	ItemD3
	ItemD2
	ItemD1
	ItemEmpty
	ItemInstr
	ItemMem
)

// OperandKind tags which field of an Item's flexible operand is populated.
type OperandKind int

const (
	OperandNone OperandKind = iota
	OperandReg
	OperandImm
	OperandLabel
)

// AddrMode enumerates the six MEM_INSTR addressing-mode shapes of spec §4.2.
type AddrMode int

const (
	AddrDirectIndex AddrMode = iota // rm, encoded without base
	AddrBaseIndex                   // rn, rm
	AddrBaseOffset                  // rn, #imm12
	AddrBaseLabel                   // rn, <label>
	AddrPCImm                       // #imm16
	AddrPCLabel                     // <label>
)

// DataWidth is the element width of a db/dh/dw/dd directive, in bytes.
type DataWidth int

const (
	Width1 DataWidth = 1
	Width2 DataWidth = 2
	Width4 DataWidth = 4
	Width8 DataWidth = 8
)

// Item is one parsed directive or instruction. No register/operand field is
// meaningful unless the corresponding Kind/OperandKind says so; -1 marks an
// unused register slot.
type Item struct {
	Pos Position

	Kind         ItemKind
	Command      Command
	Cond         Conditional
	UpdateStatus bool

	// Label carries: the label being declared (ItemLabelDecl), the name
	// named by global/extern/entry, or (for instruction operands of kind
	// OperandLabel) the referenced label name.
	Label string

	Rd, Rn, Rm int

	Operand     OperandKind
	Imm         int64
	AddrMode    AddrMode
	HasBase     bool // MEM_INSTR: whether an rn base register was given

	SectionIsText bool // ItemSection

	Width      DataWidth // ItemData
	DataBytes  []byte    // ItemData: db/dh/dw literal bytes (big-endian packed)
	DataLabel  string    // ItemData: dw <label> (or "$") slot, "" if none
	DataIsSelf bool
}
