// Package encoder implements the M20 code generator: it walks the parser's
// flat item list, emits one 32-bit instruction word (or raw data bytes) per
// item into a contiguous byte vector, and produces the symbol/relocation
// side tables that make up an object file (spec §4.3, §6.2).
package encoder

import (
	"encoding/binary"
	"fmt"

	"github.com/msedwar/m20/parser"
)

// section tracks one .text/.data region's byte-offset window in the code
// vector, grounded on original_source/src/Assembler.h's Section struct.
type section struct {
	Text  bool
	Begin uint32
	End   uint32
}

// label is a local label's resolved byte offset, grounded on Assembler.h's
// Label struct.
type label struct {
	Offset  uint32
	Section int
}

// fixup is a pending reference to a label recorded at code-generation time,
// resolved once every label has been seen (Assembler.h's LabelFixup).
type fixup struct {
	Pos    parser.Position
	Label  string // "$" for a self-reference
	Offset uint32 // byte offset of the 4-byte field to patch
	Kind   RelocKind
}

// symbolEntry and relocEntry are the 7-byte records written to the object
// file's symbol and relocation tables (spec §6.2).
type symbolEntry struct {
	Kind        SymbolKind
	Address     uint32
	StringIndex uint16
}

type relocEntry struct {
	Kind        RelocKind
	Address     uint32
	StringIndex uint16
}

// Encoder accumulates the output of one assembly unit: the code vector, its
// section table, and the label/fixup bookkeeping needed to resolve
// in-section references and produce relocations for the rest.
type Encoder struct {
	errs parser.ErrorList

	bytes    []byte
	sections []section
	current  int // index into sections, -1 if none open

	labels  map[string]label
	globals []string
	extern  map[string]bool

	fixups []fixup

	entryPoint string
	hasEntry   bool
	entrySet   bool

	stringIndex map[string]uint16
	stringBytes []byte

	symbols     []symbolEntry
	relocations []relocEntry
}

// NewEncoder returns an Encoder ready to consume one file's item list.
func NewEncoder() *Encoder {
	return &Encoder{
		current:     -1,
		labels:      make(map[string]label),
		extern:      make(map[string]bool),
		stringIndex: make(map[string]uint16),
	}
}

// ObjectFile is the decoded form of the on-disk object-file format (§6.2),
// shared between the encoder (which produces one) and the linker (which
// reads several).
type ObjectFile struct {
	Sections    []SectionHeader
	Code        []byte
	Symbols     []Symbol
	Relocations []Relocation
}

// SectionHeader describes one section's extent within Code.
type SectionHeader struct {
	Text bool
	End  uint32
}

// Symbol is one resolved entry of the object file's symbol table.
type Symbol struct {
	Kind    SymbolKind
	Address uint32
	Name    string
}

// Relocation is one pending patch the linker must apply.
type Relocation struct {
	Kind    RelocKind
	Address uint32
	Name    string // "" for a self-reference
}

// Generate walks items in order, emitting code and side tables. It returns
// the finished object file and an ErrorList; callers must check HasErrors
// before trusting the returned ObjectFile (spec §4.2: "error count > 0
// aborts the whole pipeline before code generation" applies transitively —
// an encoder error means the object file must not be written either).
func (e *Encoder) Generate(items []parser.Item) (*ObjectFile, *parser.ErrorList) {
	for i := range items {
		e.dispatch(&items[i])
	}
	e.closeSection()
	e.resolveLabels()

	if e.errs.HasErrors() {
		return nil, &e.errs
	}

	obj := &ObjectFile{Code: e.bytes}
	for _, s := range e.sections {
		obj.Sections = append(obj.Sections, SectionHeader{Text: s.Text, End: s.End})
	}
	for _, s := range e.symbols {
		obj.Symbols = append(obj.Symbols, Symbol{Kind: s.Kind, Address: s.Address, Name: e.stringAt(s.StringIndex)})
	}
	for _, r := range e.relocations {
		obj.Relocations = append(obj.Relocations, Relocation{Kind: r.Kind, Address: r.Address, Name: e.stringAt(r.StringIndex)})
	}
	return obj, &e.errs
}

func (e *Encoder) stringAt(idx uint16) string {
	end := idx
	for end < uint16(len(e.stringBytes)) && e.stringBytes[end] != 0 {
		end++
	}
	return string(e.stringBytes[idx:end])
}

func (e *Encoder) dispatch(item *parser.Item) {
	switch item.Kind {
	case parser.ItemGlobal:
		e.addGlobal(item)
	case parser.ItemExtern:
		e.addExtern(item)
	case parser.ItemEntry:
		e.addEntry(item)
	case parser.ItemSection:
		e.openSection(item)
	case parser.ItemSpace:
		e.emitSpace(item)
	case parser.ItemData:
		e.emitData(item)
	case parser.ItemLabelDecl:
		e.declareLabel(item)
	case parser.ItemD3, parser.ItemD2, parser.ItemD1, parser.ItemEmpty:
		if e.requireSection(item.Pos) {
			e.generateDataProcessing(item)
		}
	case parser.ItemMem:
		if e.requireSection(item.Pos) {
			e.generateDataLoad(item)
		}
	case parser.ItemInstr:
		if !e.requireSection(item.Pos) {
			return
		}
		if item.Command == parser.CmdSWI {
			e.generateSwi(item)
		} else {
			e.generateBranch(item)
		}
	}
}

// requireSection reports a SECTION error and returns false when no section
// is currently open.
func (e *Encoder) requireSection(pos parser.Position) bool {
	if e.current < 0 {
		e.errSection(pos, "instruction outside any section")
		return false
	}
	return true
}

func (e *Encoder) addGlobal(item *parser.Item) {
	for _, g := range e.globals {
		if g == item.Label {
			e.errDirective(item.Pos, "duplicate global label definition")
			return
		}
	}
	e.globals = append(e.globals, item.Label)
}

func (e *Encoder) addExtern(item *parser.Item) {
	if e.extern[item.Label] {
		e.errDirective(item.Pos, "duplicate extern label definition")
		return
	}
	e.extern[item.Label] = true
}

func (e *Encoder) addEntry(item *parser.Item) {
	if e.entrySet {
		e.errDirective(item.Pos, "duplicate entry point")
		return
	}
	for _, g := range e.globals {
		if g == item.Label {
			e.errDirective(item.Pos, "entry point already declared global")
			return
		}
	}
	e.entrySet = true
	e.hasEntry = true
	e.entryPoint = item.Label
	e.globals = append(e.globals, item.Label)
}

func (e *Encoder) openSection(item *parser.Item) {
	e.closeSection()
	e.sections = append(e.sections, section{Text: item.SectionIsText, Begin: uint32(len(e.bytes))})
	e.current = len(e.sections) - 1
}

func (e *Encoder) closeSection() {
	if e.current >= 0 {
		e.sections[e.current].End = uint32(len(e.bytes))
	}
}

func (e *Encoder) emitSpace(item *parser.Item) {
	if !e.requireSection(item.Pos) {
		return
	}
	if e.sections[e.current].Text {
		e.errSection(item.Pos, "space directive not allowed in a text section")
		return
	}
	e.bytes = append(e.bytes, make([]byte, item.Imm)...)
}

func (e *Encoder) emitData(item *parser.Item) {
	if !e.requireSection(item.Pos) {
		return
	}
	if e.sections[e.current].Text && len(item.DataBytes)%4 != 0 && item.DataLabel == "" && !item.DataIsSelf {
		e.errSection(item.Pos, "Non-aligned data declarations must be in a non-text section")
		return
	}
	if item.DataLabel != "" || item.DataIsSelf {
		target := item.DataLabel
		if item.DataIsSelf {
			target = "$"
		}
		e.pushFixup(item.Pos, target, RelocDataAddr, uint32(len(e.bytes)))
		e.bytes = append(e.bytes, 0, 0, 0, 0)
		return
	}
	e.bytes = append(e.bytes, item.DataBytes...)
}

func (e *Encoder) declareLabel(item *parser.Item) {
	if _, ok := e.labels[item.Label]; ok {
		e.errDirective(item.Pos, "duplicate label definition")
		return
	}
	e.labels[item.Label] = label{Offset: uint32(len(e.bytes)), Section: e.current}
}

func (e *Encoder) pushFixup(pos parser.Position, name string, kind RelocKind, offset uint32) {
	e.fixups = append(e.fixups, fixup{Pos: pos, Label: name, Offset: offset, Kind: kind})
}

// emitWord appends a big-endian 32-bit instruction word, rejecting an
// unaligned emission point the way every generateX routine in
// original_source/src/Assembler.cpp does.
func (e *Encoder) emitWord(pos parser.Position, word uint32) {
	if len(e.bytes)%4 != 0 {
		e.errAlignment(pos, "instruction not 4 byte aligned")
		return
	}
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], word)
	e.bytes = append(e.bytes, buf[:]...)
}

// resolveLabels runs once code emission is complete: it validates
// globals/externs against the declared local labels, then resolves every
// fixup either in place (same-section OR-patch) or as a relocation record,
// per spec §4.3's label-resolution pass.
func (e *Encoder) resolveLabels() {
	for _, name := range e.globals {
		lbl, ok := e.labels[name]
		if !ok {
			e.errLabel(parser.Position{}, fmt.Sprintf("undefined global label %q", name))
			continue
		}
		if e.extern[name] {
			e.errLabel(parser.Position{}, fmt.Sprintf("label %q is both global and extern", name))
			continue
		}
		kind := SymbolDefined
		if e.hasEntry && name == e.entryPoint {
			kind = SymbolEntry
		}
		e.addSymbol(parser.Position{}, kind, lbl.Offset, name)
	}
	for name := range e.extern {
		if _, ok := e.labels[name]; ok {
			e.errLabel(parser.Position{}, fmt.Sprintf("extern label %q also defined locally", name))
			continue
		}
		e.addSymbol(parser.Position{}, SymbolUndefined, 0, name)
	}

	for _, fx := range e.fixups {
		switch {
		case fx.Label == "$":
			e.addRelocation(fx.Pos, fx.Kind, fx.Offset, "")
		case e.extern[fx.Label]:
			e.addRelocation(fx.Pos, fx.Kind, fx.Offset, fx.Label)
		default:
			lbl, ok := e.labels[fx.Label]
			if !ok {
				e.errLabel(fx.Pos, fmt.Sprintf("undefined label %q (is it extern?)", fx.Label))
				continue
			}
			if lbl.Section == e.sectionOf(fx.Offset) {
				imm, err := GetImmediate(fx.Offset, lbl.Offset, fx.Kind)
				if err != nil {
					e.errLabel(fx.Pos, err.Error())
					continue
				}
				e.orInPlace(fx.Offset, imm)
			} else {
				e.addSymbol(fx.Pos, SymbolLocal, lbl.Offset, fx.Label)
				e.addRelocation(fx.Pos, fx.Kind, fx.Offset, fx.Label)
			}
		}
	}
}

func (e *Encoder) sectionOf(offset uint32) int {
	for i, s := range e.sections {
		if offset >= s.Begin && offset < s.End {
			return i
		}
	}
	return -1
}

func (e *Encoder) orInPlace(offset uint32, value uint32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], value)
	e.bytes[offset] |= buf[0]
	e.bytes[offset+1] |= buf[1]
	e.bytes[offset+2] |= buf[2]
	e.bytes[offset+3] |= buf[3]
}

// addLabel interns name into the string table, raising a LABEL error instead
// of silently wrapping once the table grows past the format's 16-bit index
// field (spec §3: "too many labels").
func (e *Encoder) addLabel(pos parser.Position, name string) uint16 {
	if idx, ok := e.stringIndex[name]; ok {
		return idx
	}
	idx, err := safeUint16(len(e.stringBytes))
	if err != nil {
		e.errLabel(pos, "too many labels: string table exceeds 65536 bytes")
		return 0
	}
	e.stringIndex[name] = idx
	e.stringBytes = append(e.stringBytes, name...)
	e.stringBytes = append(e.stringBytes, 0)
	return idx
}

func (e *Encoder) addSymbol(pos parser.Position, kind SymbolKind, address uint32, name string) {
	e.symbols = append(e.symbols, symbolEntry{Kind: kind, Address: address, StringIndex: e.addLabel(pos, name)})
}

func (e *Encoder) addRelocation(pos parser.Position, kind RelocKind, address uint32, name string) {
	if (kind == RelocBranchRelativeLabel || kind == RelocDataAddr) && name != "" {
		if lbl, ok := e.labels[name]; ok && lbl.Offset%4 != 0 {
			e.errLabel(pos, fmt.Sprintf("label %q not 4 byte aligned", name))
			return
		}
	}
	e.relocations = append(e.relocations, relocEntry{Kind: kind, Address: address, StringIndex: e.addLabel(pos, name)})
}

// GetImmediate computes the patch value for one fixup, per spec §4.3's
// relative/PC-bias/alignment/bit-width table. Both the assembler (in-section
// fixups) and the linker (cross-file relocations) call this with the same
// semantics, grounded on original_source/src/Assembler.cpp's getImmediate.
func GetImmediate(addr, target uint32, kind RelocKind) (uint32, error) {
	var relative, relativePC, aligned bool
	var bits uint

	switch kind {
	case RelocD2Label:
		bits = 16
	case RelocBranchRelativeLabel:
		relative, relativePC, aligned, bits = true, true, true, 23
	case RelocMemRelativeLabel:
		relative, relativePC, bits = true, true, 16
	case RelocMemBaseOffsetLabel:
		relative, bits = true, 12
	case RelocDataAddr:
		bits = 32
	default:
		return 0, fmt.Errorf("unsupported relocation kind %d", kind)
	}

	var offset int64
	if relative {
		offset = int64(target) - int64(addr)
		if relativePC {
			offset -= 4
		}
	} else {
		offset = int64(target)
	}

	if aligned {
		if offset%4 != 0 {
			return 0, fmt.Errorf("not 4 byte aligned")
		}
		offset >>= 2
	}

	if bits < 32 {
		mask := int64(-1) << bits
		top := offset & mask
		if top != 0 && top != mask {
			return 0, fmt.Errorf("out of range")
		}
	}

	windowMask := uint32(0xFFFFFFFF)
	if bits < 32 {
		windowMask = (uint32(1) << bits) - 1
	}
	return uint32(offset) & windowMask, nil
}

// Marshal serializes an ObjectFile to the on-disk layout of spec §6.2:
// magic, version, table-size header, section headers, code, string table,
// symbol table, relocation table — all big-endian. It rejects a table that
// no longer fits the format's fixed-width header fields instead of silently
// truncating it (spec §3's string-table "too many labels" rule, generalized
// to every 32-bit length field).
func (obj *ObjectFile) Marshal() ([]byte, error) {
	strIndex := make(map[string]uint16)
	var strBytes []byte
	var internErr error
	intern := func(name string) uint16 {
		if idx, ok := strIndex[name]; ok {
			return idx
		}
		idx, err := safeUint16(len(strBytes))
		if err != nil {
			if internErr == nil {
				internErr = fmt.Errorf("too many labels: string table exceeds 65536 bytes")
			}
			return 0
		}
		strIndex[name] = idx
		strBytes = append(strBytes, name...)
		strBytes = append(strBytes, 0)
		return idx
	}

	// SymbolKind/RelocKind are already byte-sized (encoder/constants.go), so
	// these casts are same-width, not narrowing.
	symTable := make([]byte, 0, len(obj.Symbols)*7)
	for _, s := range obj.Symbols {
		symTable = appendSymbolRecord(symTable, byte(s.Kind), s.Address, intern(s.Name))
	}
	relTable := make([]byte, 0, len(obj.Relocations)*7)
	for _, r := range obj.Relocations {
		relTable = appendSymbolRecord(relTable, byte(r.Kind), r.Address, intern(r.Name))
	}
	if internErr != nil {
		return nil, internErr
	}

	sectionCount, err := safeUint32(len(obj.Sections))
	if err != nil {
		return nil, fmt.Errorf("too many sections: %w", err)
	}
	codeSize, err := safeUint32(len(obj.Code))
	if err != nil {
		return nil, fmt.Errorf("code section too large: %w", err)
	}
	stringSize, err := safeUint32(len(strBytes))
	if err != nil {
		return nil, fmt.Errorf("string table too large: %w", err)
	}
	symSize, err := safeUint32(len(symTable))
	if err != nil {
		return nil, fmt.Errorf("symbol table too large: %w", err)
	}
	relSize, err := safeUint32(len(relTable))
	if err != nil {
		return nil, fmt.Errorf("relocation table too large: %w", err)
	}

	out := make([]byte, 28)
	binary.BigEndian.PutUint32(out[0:], magic)
	binary.BigEndian.PutUint32(out[4:], fileVersion)
	binary.BigEndian.PutUint32(out[8:], sectionCount)
	binary.BigEndian.PutUint32(out[12:], codeSize)
	binary.BigEndian.PutUint32(out[16:], stringSize)
	binary.BigEndian.PutUint32(out[20:], symSize)
	binary.BigEndian.PutUint32(out[24:], relSize)

	for _, sh := range obj.Sections {
		flag := byte(sectionFlagData)
		if sh.Text {
			flag = sectionFlagText
		}
		var end [4]byte
		binary.BigEndian.PutUint32(end[:], sh.End)
		out = append(out, flag)
		out = append(out, end[:]...)
	}
	out = append(out, obj.Code...)
	out = append(out, strBytes...)
	out = append(out, symTable...)
	out = append(out, relTable...)
	return out, nil
}

func appendSymbolRecord(dst []byte, kind byte, address uint32, stringIndex uint16) []byte {
	var addr [4]byte
	binary.BigEndian.PutUint32(addr[:], address)
	var idx [2]byte
	binary.BigEndian.PutUint16(idx[:], stringIndex)
	dst = append(dst, kind)
	dst = append(dst, addr[:]...)
	dst = append(dst, idx[:]...)
	return dst
}

// ReadObjectFile parses the on-disk layout of spec §6.2 back into an
// ObjectFile, the inverse of Marshal.
func ReadObjectFile(data []byte) (*ObjectFile, error) {
	if len(data) < 28 {
		return nil, fmt.Errorf("object file truncated: header needs 28 bytes, got %d", len(data))
	}
	if binary.BigEndian.Uint32(data[0:]) != magic {
		return nil, fmt.Errorf("bad object file magic")
	}
	if v := binary.BigEndian.Uint32(data[4:]); v != fileVersion {
		return nil, fmt.Errorf("unsupported object file version %d", v)
	}
	sectionCount := binary.BigEndian.Uint32(data[8:])
	codeSize := binary.BigEndian.Uint32(data[12:])
	stringSize := binary.BigEndian.Uint32(data[16:])
	symSize := binary.BigEndian.Uint32(data[20:])
	relSize := binary.BigEndian.Uint32(data[24:])

	off := 28
	obj := &ObjectFile{}
	for i := uint32(0); i < sectionCount; i++ {
		if off+5 > len(data) {
			return nil, fmt.Errorf("object file truncated in section headers")
		}
		flag := data[off]
		end := binary.BigEndian.Uint32(data[off+1:])
		obj.Sections = append(obj.Sections, SectionHeader{Text: flag == sectionFlagText, End: end})
		off += 5
	}

	if off+int(codeSize) > len(data) {
		return nil, fmt.Errorf("object file truncated in code section")
	}
	obj.Code = data[off : off+int(codeSize)]
	off += int(codeSize)

	if off+int(stringSize) > len(data) {
		return nil, fmt.Errorf("object file truncated in string table")
	}
	strBytes := data[off : off+int(stringSize)]
	off += int(stringSize)

	readString := func(idx uint16) string {
		end := int(idx)
		for end < len(strBytes) && strBytes[end] != 0 {
			end++
		}
		return string(strBytes[idx:end])
	}

	if symSize%7 != 0 || off+int(symSize) > len(data) {
		return nil, fmt.Errorf("object file truncated or malformed symbol table")
	}
	for p := off; p < off+int(symSize); p += 7 {
		obj.Symbols = append(obj.Symbols, Symbol{
			Kind:    SymbolKind(data[p]),
			Address: binary.BigEndian.Uint32(data[p+1:]),
			Name:    readString(binary.BigEndian.Uint16(data[p+5:])),
		})
	}
	off += int(symSize)

	if relSize%7 != 0 || off+int(relSize) > len(data) {
		return nil, fmt.Errorf("object file truncated or malformed relocation table")
	}
	for p := off; p < off+int(relSize); p += 7 {
		obj.Relocations = append(obj.Relocations, Relocation{
			Kind:    RelocKind(data[p]),
			Address: binary.BigEndian.Uint32(data[p+1:]),
			Name:    readString(binary.BigEndian.Uint16(data[p+5:])),
		})
	}

	return obj, nil
}
