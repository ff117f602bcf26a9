package vm

// Processor modes, packed into the low two bits of the status word.
const (
	ModeUsr = 0x00000000
	ModeSvr = 0x00000001
	ModeInt = 0x00000002
	ModeAbt = 0x00000003
)

// NZCV flag bits within the status word.
const (
	stN = 0x80000000
	stZ = 0x40000000
	stC = 0x20000000
	stV = 0x10000000
)

// Exception vectors, byte offsets reserved for handlers (never executed
// directly; no handler is written at any of them — the boot-time halt stub
// lives at 0xFFFC, the initial lp target, not at a vector).
const (
	VectorUndefinedInstruction = 4
	VectorSoftwareInterrupt    = 8
	VectorPrefetchAbort        = 12
	VectorDataAbort            = 16
	VectorUsageAbort           = 20
	VectorHardwareInterrupt    = 56
)

// Boot-time register values, grounded on Simulator.cpp's simulate().
const (
	bootSP      = 0xFFF8
	bootLP      = 0xFFFC
	haltHandler = 0xE1F00000 // decodes as HALT,AL
	bootStatus  = ModeSvr
)

// Data-processing opcodes (bits 24:20 of the instruction word).
const (
	opNOOP = 0x00
	opADD  = 0x01
	opADC  = 0x02
	opSUB  = 0x03
	opSBC  = 0x04
	opMUL  = 0x05
	opDIV  = 0x06
	opUDV  = 0x07
	opOR   = 0x08
	opAND  = 0x09
	opXOR  = 0x0A
	opNOR  = 0x0B
	opBIC  = 0x0C
	opROR  = 0x0D
	opLSL  = 0x0E
	opLSR  = 0x0F
	opASR  = 0x10
	opMOV  = 0x11
	opMVN  = 0x12
	opCMP  = 0x13
	opCMN  = 0x14
	opTST  = 0x15
	opTEQ  = 0x16
	opPUSH = 0x17
	opPOP  = 0x18
	opSRL  = 0x19
	opSRS  = 0x1A
	opHALT = 0x1F
)

// Load/store opcodes (bits 22:20 of the instruction word).
const (
	opLDR   = 0x0
	opLDRB  = 0x1
	opLDRH  = 0x2
	opLDRSB = 0x3
	opLDRSH = 0x4
	opSTR   = 0x5
	opSTRB  = 0x6
	opSTRH  = 0x7
)

// Family-selector bits tested in order during decode, grounded on
// Simulator.cpp's simulate() loop.
const (
	familyData   = 0x08000000
	familyLoad   = 0x04000000
	familyBranch = 0x02000000
	familyCoproc = 0x01000000
)

const signBitMask = 0x80000000

// Status-register operand aliases (st/sv), valid only as SRL's source or
// SRS's destination; they sit outside the 0-15 general-purpose register
// space entirely.
const (
	regStatusST = 16
	regStatusSV = 17
)
