// Package linker implements the M20 linker: it reads several object files,
// concatenates their sections into one flat executable image (text sections
// first, then data sections), and patches every relocation to its final
// address (spec §4.4). New package — the ARM emulator this module was
// ported from loads one executable directly and has no linker; this is
// grounded on original_source/src/Linker.cpp's link/readFiles/fixupSection/
// fixupSymbol/getImmediate.
package linker

import (
	"encoding/binary"
	"fmt"

	"github.com/msedwar/m20/encoder"
	"github.com/msedwar/m20/parser"
)

// section is one object file's section after being read in, tagged with the
// file it came from and (once layout runs) its final base address.
type section struct {
	file    string
	begin   uint32 // offset within the originating file's code blob
	end     uint32
	text    bool
	data    []byte
	address uint32
}

type symbolRecord struct {
	section int // index into Linker.sections
	address uint32
	kind    encoder.SymbolKind
}

type relocRecord struct {
	name    string
	section int
	address uint32
	kind    encoder.RelocKind
}

// Linker accumulates object files via AddObject, then produces a single
// executable image via Link.
type Linker struct {
	errs parser.ErrorList

	sections []section

	// fileSymbols[file][name] is that file's own view of a symbol — its
	// local definition, or an UNDEFINED placeholder for an extern import.
	fileSymbols map[string]map[string]symbolRecord

	// definedSymbols[name] is the file that provides the one authoritative
	// DEFINED/ENTRY definition of name, built across every added file.
	definedSymbols map[string]string

	relocations map[int][]relocRecord

	bytes []byte
}

// NewLinker returns a Linker ready to accept object files via AddObject.
func NewLinker() *Linker {
	return &Linker{
		fileSymbols:    make(map[string]map[string]symbolRecord),
		definedSymbols: make(map[string]string),
		relocations:    make(map[int][]relocRecord),
	}
}

// AddObject reads one object file's raw bytes and appends its sections,
// symbols, and relocations to the linker's global view, grounded on
// Linker.cpp's readFiles.
func (l *Linker) AddObject(file string, data []byte) error {
	obj, err := encoder.ReadObjectFile(data)
	if err != nil {
		return fmt.Errorf("%s: %w", file, err)
	}

	sectionOffset := len(l.sections)
	begin := uint32(0)
	for _, sh := range obj.Sections {
		l.sections = append(l.sections, section{file: file, begin: begin, end: sh.End, text: sh.Text})
		begin = sh.End
	}
	for i, sh := range obj.Sections {
		s := &l.sections[sectionOffset+i]
		s.data = append([]byte(nil), obj.Code[s.begin:sh.End]...)
	}

	if l.fileSymbols[file] == nil {
		l.fileSymbols[file] = make(map[string]symbolRecord)
	}
	for _, sym := range obj.Symbols {
		sec := l.sectionFor(sectionOffset, sym.Address)
		l.fileSymbols[file][sym.Name] = symbolRecord{section: sec, address: sym.Address, kind: sym.Kind}
		if sym.Kind == encoder.SymbolDefined || sym.Kind == encoder.SymbolEntry {
			if other, dup := l.definedSymbols[sym.Name]; dup {
				l.errLink(file, fmt.Sprintf("duplicate global symbol %q (also defined in %s)", sym.Name, other))
				continue
			}
			l.definedSymbols[sym.Name] = file
		}
	}

	for _, r := range obj.Relocations {
		sec := l.sectionFor(sectionOffset, r.Address)
		l.relocations[sec] = append(l.relocations[sec], relocRecord{name: r.Name, section: sec, address: r.Address, kind: r.Kind})
	}

	return nil
}

// sectionFor finds which of the sections just added by this file an address
// falls within, mirroring readFiles's linear scan.
func (l *Linker) sectionFor(sectionOffset int, address uint32) int {
	for j := sectionOffset; j < len(l.sections); j++ {
		if address < l.sections[j].end {
			return j
		}
	}
	return len(l.sections) - 1
}

// Link validates every extern reference, lays out text-then-data sections
// at their final addresses, applies every relocation, and pads the result
// to a 4-byte boundary (spec §4.4, §6.3).
func (l *Linker) Link() ([]byte, *parser.ErrorList) {
	for file, syms := range l.fileSymbols {
		for name, sym := range syms {
			if sym.kind == encoder.SymbolUndefined {
				if _, ok := l.definedSymbols[name]; !ok {
					l.errLink(file, fmt.Sprintf("undefined symbol %q", name))
				}
			}
		}
	}
	if l.errs.HasErrors() {
		return nil, &l.errs
	}

	var textIdx, dataIdx []int
	for i, s := range l.sections {
		if s.text {
			textIdx = append(textIdx, i)
		} else {
			dataIdx = append(dataIdx, i)
		}
	}

	var address uint32
	for _, i := range textIdx {
		l.sections[i].address = address
		l.bytes = append(l.bytes, l.sections[i].data...)
		address += uint32(len(l.sections[i].data))
	}
	for _, i := range dataIdx {
		l.sections[i].address = address
		l.bytes = append(l.bytes, l.sections[i].data...)
		address += uint32(len(l.sections[i].data))
	}

	for _, i := range textIdx {
		l.fixupSection(i)
	}
	for _, i := range dataIdx {
		l.fixupSection(i)
	}

	if l.errs.HasErrors() {
		return nil, &l.errs
	}

	for len(l.bytes)%4 != 0 {
		l.bytes = append(l.bytes, 0)
	}

	return l.bytes, &l.errs
}

// fixupSection resolves every relocation recorded against one section,
// grounded on Linker.cpp's fixupSection.
func (l *Linker) fixupSection(i int) {
	sec := l.sections[i]
	for _, reloc := range l.relocations[i] {
		if reloc.name == "" {
			// A self ("$") relocation is deliberately unsupported at link
			// time (spec §4.4) and is passed through uncomputed.
			continue
		}

		current := sec.address + (reloc.address - sec.begin)

		if local, ok := l.fileSymbols[sec.file][reloc.name]; ok && local.kind == encoder.SymbolLocal {
			target := l.sections[local.section]
			targetAddr := target.address + (local.address - target.begin)
			l.applyFixup(sec.file, current, targetAddr, reloc)
			continue
		}

		if defFile, ok := l.definedSymbols[reloc.name]; ok {
			other := l.fileSymbols[defFile][reloc.name]
			target := l.sections[other.section]
			targetAddr := target.address + (other.address - target.begin)
			l.applyFixup(sec.file, current, targetAddr, reloc)
			continue
		}

		l.errLink(sec.file, fmt.Sprintf("undefined symbol %q", reloc.name))
	}
}

func (l *Linker) applyFixup(file string, current, targetAddr uint32, reloc relocRecord) {
	imm, err := encoder.GetImmediate(current, targetAddr, reloc.kind)
	if err != nil {
		l.errLink(file, fmt.Sprintf("%s: %v", reloc.name, err))
		return
	}
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], imm)
	l.bytes[current] |= buf[0]
	l.bytes[current+1] |= buf[1]
	l.bytes[current+2] |= buf[2]
	l.bytes[current+3] |= buf[3]
}

func (l *Linker) errLink(file, message string) {
	l.errs.AddError(parser.NewError(parser.Position{Filename: file}, parser.ErrorLink, message))
}
