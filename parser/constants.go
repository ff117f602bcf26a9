package parser

import "strings"

// TokenType enumerates the sixteen token kinds the lexer can produce plus an
// internal end-of-input sentinel (eof is not one of the sixteen contract
// kinds and is never handed to the parser).
type TokenType int

const (
	INVALID TokenType = iota
	WHITESPACE
	COMMENT
	NUMBER
	KEYWORD
	REGISTER
	COMMA
	DECLARE
	STRING
	D3_INSTR
	D2_INSTR
	D1_INSTR
	EMPTY_INSTR
	MEM_INSTR
	INSTRUCTION
	LABEL
	eof // internal only
)

func (t TokenType) String() string {
	switch t {
	case INVALID:
		return "INVALID"
	case WHITESPACE:
		return "WHITESPACE"
	case COMMENT:
		return "COMMENT"
	case NUMBER:
		return "NUMBER"
	case KEYWORD:
		return "KEYWORD"
	case REGISTER:
		return "REGISTER"
	case COMMA:
		return "COMMA"
	case DECLARE:
		return "DECLARE"
	case STRING:
		return "STRING"
	case D3_INSTR:
		return "D3_INSTR"
	case D2_INSTR:
		return "D2_INSTR"
	case D1_INSTR:
		return "D1_INSTR"
	case EMPTY_INSTR:
		return "EMPTY_INSTR"
	case MEM_INSTR:
		return "MEM_INSTR"
	case INSTRUCTION:
		return "INSTRUCTION"
	case LABEL:
		return "LABEL"
	default:
		return "EOF"
	}
}

// Conditional is the 4-bit condition code carried by every instruction.
type Conditional int

const (
	CondEQ Conditional = iota
	CondNE
	CondCS
	CondCC
	CondMI
	CondPL
	CondVS
	CondVC
	CondHI
	CondLS
	CondGE
	CondLT
	CondGT
	CondLE
	CondAL
)

var condNames = map[string]Conditional{
	"eq": CondEQ, "ne": CondNE, "cs": CondCS, "cc": CondCC,
	"mi": CondMI, "pl": CondPL, "vs": CondVS, "vc": CondVC,
	"hi": CondHI, "ls": CondLS, "ge": CondGE, "lt": CondLT,
	"gt": CondGT, "le": CondLE, "al": CondAL,
}

func (c Conditional) String() string {
	for name, v := range condNames {
		if v == c {
			return name
		}
	}
	return "al"
}

// lookupCondition returns the Conditional for a lowercase 2-letter suffix.
func lookupCondition(s string) (Conditional, bool) {
	c, ok := condNames[strings.ToLower(s)]
	return c, ok
}

// keywordSet is the set of bare keywords (case-insensitive), excluding the
// two dotted section names and the "$" self-reference which are recognized
// separately by the scanner.
var keywordSet = map[string]bool{
	"global": true, "extern": true, "entry": true, "section": true,
	"db": true, "dh": true, "dw": true, "dd": true, "space": true,
}

// registerIndex maps a lowercase register name to its general-purpose index
// 0..15 (r0..r12, sp=13, lp=14, pc=15).
var registerIndex = map[string]int{
	"r0": 0, "r1": 1, "r2": 2, "r3": 3, "r4": 4, "r5": 5, "r6": 6,
	"r7": 7, "r8": 8, "r9": 9, "r10": 10, "r11": 11, "r12": 12,
	"sp": 13, "lp": 14, "pc": 15,
}

const (
	// RegST and RegSV are the status-register aliases, valid only as the
	// operand of SRL/SRS; they are not part of the general-purpose bank.
	RegST = 16
	RegSV = 17
)

var statusRegisterIndex = map[string]int{"st": RegST, "sv": RegSV}

// d3Mnemonics, in original TOKEN_REGEX order, each optionally followed by a
// 2-letter condition and (only for this family) a ".s" status-update suffix.
var d3Mnemonics = []string{
	"mul", "add", "adc", "sub", "sbc", "div", "udv",
	"or", "and", "xor", "nor", "bic", "ror", "lsl", "lsr", "asr",
}

var d2Mnemonics = []string{"mov", "mvn", "cmp", "cmn", "tst", "teq", "srs", "srl"}

var d1Mnemonics = []string{"push", "pop"}

var emptyMnemonics = []string{"noop", "halt"}

// memMnemonics is ordered longest-prefix-first so an exact-match decomposition
// never has to choose between e.g. "ldrsb" and "ldrb".
var memMnemonics = []string{"ldrsb", "ldrsh", "ldrb", "ldrh", "ldr", "strb", "strh", "str"}

var instrMnemonics = []string{"bwl", "swi", "b"}

// Command identifies the specific operation an Item performs, independent of
// its operand shape (several shapes can carry the same underlying family).
type Command int

const (
	CmdNOOP Command = iota
	CmdADD
	CmdADC
	CmdSUB
	CmdSBC
	CmdMUL
	CmdDIV
	CmdUDV
	CmdOR
	CmdAND
	CmdXOR
	CmdNOR
	CmdBIC
	CmdROR
	CmdLSL
	CmdLSR
	CmdASR
	CmdMOV
	CmdMVN
	CmdCMP
	CmdCMN
	CmdTST
	CmdTEQ
	CmdPUSH
	CmdPOP
	CmdSRL
	CmdSRS
	CmdHALT
	CmdLDR
	CmdLDRB
	CmdLDRH
	CmdLDRSB
	CmdLDRSH
	CmdSTR
	CmdSTRB
	CmdSTRH
	CmdB
	CmdBWL
	CmdSWI
)

var commandNames = map[string]Command{
	"noop": CmdNOOP, "add": CmdADD, "adc": CmdADC, "sub": CmdSUB, "sbc": CmdSBC,
	"mul": CmdMUL, "div": CmdDIV, "udv": CmdUDV, "or": CmdOR, "and": CmdAND,
	"xor": CmdXOR, "nor": CmdNOR, "bic": CmdBIC, "ror": CmdROR, "lsl": CmdLSL,
	"lsr": CmdLSR, "asr": CmdASR, "mov": CmdMOV, "mvn": CmdMVN, "cmp": CmdCMP,
	"cmn": CmdCMN, "tst": CmdTST, "teq": CmdTEQ, "push": CmdPUSH, "pop": CmdPOP,
	"srl": CmdSRL, "srs": CmdSRS, "halt": CmdHALT, "ldr": CmdLDR, "ldrb": CmdLDRB,
	"ldrh": CmdLDRH, "ldrsb": CmdLDRSB, "ldrsh": CmdLDRSH, "str": CmdSTR,
	"strb": CmdSTRB, "strh": CmdSTRH, "b": CmdB, "bwl": CmdBWL, "swi": CmdSWI,
}

func (c Command) String() string {
	for name, v := range commandNames {
		if v == c {
			return name
		}
	}
	return "?"
}
