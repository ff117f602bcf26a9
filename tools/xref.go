// Package tools provides auxiliary reporting utilities built on top of the
// object-file format: a symbol cross-referencer working against
// encoder.ObjectFile's resolved symbol and relocation tables.
package tools

import (
	"fmt"
	"sort"
	"strings"

	"github.com/msedwar/m20/encoder"
)

// relocKindName gives each RelocKind a short, report-friendly label.
func relocKindName(kind encoder.RelocKind) string {
	switch kind {
	case encoder.RelocD2Label:
		return "d2-operand"
	case encoder.RelocBranchRelativeLabel:
		return "branch"
	case encoder.RelocMemRelativeLabel:
		return "load/store (pc-relative)"
	case encoder.RelocMemBaseOffsetLabel:
		return "load/store (base offset)"
	case encoder.RelocDataAddr:
		return "data word"
	default:
		return "unknown"
	}
}

func symbolKindName(kind encoder.SymbolKind) string {
	switch kind {
	case encoder.SymbolUndefined:
		return "extern"
	case encoder.SymbolDefined:
		return "global"
	case encoder.SymbolLocal:
		return "local (cross-section)"
	case encoder.SymbolEntry:
		return "entry"
	default:
		return "unknown"
	}
}

// XRefEntry collects everything a report needs about one named symbol: its
// defining entry (if any) and every relocation that refers to it.
type XRefEntry struct {
	Name        string
	Definitions []encoder.Symbol
	References  []encoder.Relocation
}

// XRefGenerator builds a symbol cross-reference from an object file's
// Symbols and Relocations tables.
type XRefGenerator struct {
	entries map[string]*XRefEntry
}

// NewXRefGenerator returns an empty generator.
func NewXRefGenerator() *XRefGenerator {
	return &XRefGenerator{entries: make(map[string]*XRefEntry)}
}

// Generate walks one object file's symbol and relocation tables, grouping
// them by name.
func (x *XRefGenerator) Generate(obj *encoder.ObjectFile) map[string]*XRefEntry {
	for _, sym := range obj.Symbols {
		x.entry(sym.Name).Definitions = append(x.entry(sym.Name).Definitions, sym)
	}
	for _, reloc := range obj.Relocations {
		if reloc.Name == "" {
			continue // self relocation ("$"), nothing to cross-reference
		}
		x.entry(reloc.Name).References = append(x.entry(reloc.Name).References, reloc)
	}
	return x.entries
}

func (x *XRefGenerator) entry(name string) *XRefEntry {
	e, ok := x.entries[name]
	if !ok {
		e = &XRefEntry{Name: name}
		x.entries[name] = e
	}
	return e
}

// XRefReport renders a generator's entries as a stable, sorted text report.
type XRefReport struct {
	entries []*XRefEntry
}

// NewXRefReport sorts entries by name for deterministic output.
func NewXRefReport(entries map[string]*XRefEntry) *XRefReport {
	sorted := make([]*XRefEntry, 0, len(entries))
	for _, e := range entries {
		sorted = append(sorted, e)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return &XRefReport{entries: sorted}
}

// String renders the report.
func (r *XRefReport) String() string {
	var sb strings.Builder

	sb.WriteString("Symbol Cross-Reference\n")
	sb.WriteString("======================\n\n")

	undefined, unused := 0, 0
	for _, e := range r.entries {
		sb.WriteString(fmt.Sprintf("%-30s\n", e.Name))

		if len(e.Definitions) == 0 {
			sb.WriteString("  Defined:     (undefined)\n")
			undefined++
		} else {
			for _, def := range e.Definitions {
				sb.WriteString(fmt.Sprintf("  Defined:     %s @ 0x%08X\n", symbolKindName(def.Kind), def.Address))
			}
		}

		if len(e.References) == 0 {
			sb.WriteString("  Referenced:  (never)\n")
			unused++
		} else {
			sb.WriteString(fmt.Sprintf("  Referenced:  %d time(s)\n", len(e.References)))
			for _, ref := range e.References {
				sb.WriteString(fmt.Sprintf("    %-28s @ 0x%08X\n", relocKindName(ref.Kind), ref.Address))
			}
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Summary\n")
	sb.WriteString("=======\n")
	sb.WriteString(fmt.Sprintf("Total symbols:     %d\n", len(r.entries)))
	sb.WriteString(fmt.Sprintf("Undefined:         %d\n", undefined))
	sb.WriteString(fmt.Sprintf("Unreferenced:      %d\n", unused))

	return sb.String()
}

// GenerateXRef is a convenience wrapper producing a formatted report
// directly from an object file.
func GenerateXRef(obj *encoder.ObjectFile) string {
	gen := NewXRefGenerator()
	entries := gen.Generate(obj)
	return NewXRefReport(entries).String()
}
