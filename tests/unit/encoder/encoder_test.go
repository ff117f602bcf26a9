package encoder_test

import (
	"encoding/binary"
	"fmt"
	"strings"
	"testing"

	"github.com/msedwar/m20/encoder"
	"github.com/msedwar/m20/parser"
)

func assemble(t *testing.T, src string) (*encoder.ObjectFile, *parser.ErrorList) {
	t.Helper()
	toks := parser.Significant(parser.NewLexer(src, "test.as").TokenizeAll())
	items, errs := parser.NewParser(toks).Parse()
	if errs.HasErrors() {
		t.Fatalf("unexpected parse errors: %v", errs.Errors)
	}
	return encoder.NewEncoder().Generate(items)
}

func word(code []byte, i int) uint32 {
	return binary.BigEndian.Uint32(code[i*4:])
}

// TestEncoder_Scenario1 exercises scenario S1: two instructions, 8 bytes.
func TestEncoder_Scenario1(t *testing.T) {
	obj, errs := assemble(t, "section .text\nentry main\nmain: mov r0, #5\nhalt\n")
	if errs.HasErrors() {
		t.Fatalf("unexpected encode errors: %v", errs.Errors)
	}
	if len(obj.Code) != 8 {
		t.Fatalf("expected 8 bytes of code, got %d", len(obj.Code))
	}

	var sawEntry bool
	for _, s := range obj.Symbols {
		if s.Name == "main" && s.Kind == encoder.SymbolEntry {
			sawEntry = true
		}
	}
	if !sawEntry {
		t.Errorf("expected an ENTRY symbol for main, got %+v", obj.Symbols)
	}
}

func TestEncoder_D3AddImmediate(t *testing.T) {
	obj, errs := assemble(t, "section .text\nadd r1, r2, #5\n")
	if errs.HasErrors() {
		t.Fatalf("unexpected errors: %v", errs.Errors)
	}
	w := word(obj.Code, 0)
	if w&0xF0000000 != 0xE0000000 {
		t.Errorf("expected AL condition nibble 0xE, got %#x", w>>28)
	}
	if (w>>20)&0x1F != 0x01 {
		t.Errorf("expected ADD opcode 0x01, got %#x", (w>>20)&0x1F)
	}
	if w&0x02000000 == 0 {
		t.Error("expected has-immediate bit set")
	}
	if (w>>16)&0xF != 1 {
		t.Errorf("expected rd=1, got %d", (w>>16)&0xF)
	}
	if (w>>12)&0xF != 2 {
		t.Errorf("expected rn=2, got %d", (w>>12)&0xF)
	}
	if w&0xFFF != 5 {
		t.Errorf("expected immediate 5, got %d", w&0xFFF)
	}
}

func TestEncoder_StatusUpdateBit(t *testing.T) {
	obj, errs := assemble(t, "section .text\nadd.s r0, r1, r2\n")
	if errs.HasErrors() {
		t.Fatalf("unexpected errors: %v", errs.Errors)
	}
	if word(obj.Code, 0)&0x04000000 == 0 {
		t.Error("expected status-update bit set for add.s")
	}
}

// TestEncoder_BranchRelativeLabel exercises scenario S3: a forward branch
// four instructions ahead encodes as word offset 3.
func TestEncoder_BranchRelativeLabel(t *testing.T) {
	src := "section .text\nb main\nnoop\nnoop\nnoop\nmain: halt\n"
	obj, errs := assemble(t, src)
	if errs.HasErrors() {
		t.Fatalf("unexpected errors: %v", errs.Errors)
	}
	w := word(obj.Code, 0)
	if w&0xF0000000 != 0xE0000000 {
		t.Errorf("expected AL condition nibble 0xE, got %#x", w>>28)
	}
	if w&0x00800000 == 0 {
		t.Error("expected has-immediate bit set on a relative branch")
	}
	if w&0x007FFFFF != 3 {
		t.Errorf("expected word offset 3, got %d", w&0x007FFFFF)
	}
	if len(obj.Relocations) != 0 {
		t.Errorf("expected no relocations for an in-section label, got %+v", obj.Relocations)
	}
}

func TestEncoder_BranchLinkBit(t *testing.T) {
	obj, errs := assemble(t, "section .text\nbwl target\ntarget: noop\n")
	if errs.HasErrors() {
		t.Fatalf("unexpected errors: %v", errs.Errors)
	}
	if word(obj.Code, 0)&0x01000000 == 0 {
		t.Error("expected BWL to set the link bit")
	}
}

func TestEncoder_BranchRegisterIndirect(t *testing.T) {
	obj, errs := assemble(t, "section .text\nb r3\n")
	if errs.HasErrors() {
		t.Fatalf("unexpected errors: %v", errs.Errors)
	}
	w := word(obj.Code, 0)
	if w&0x00800000 != 0 {
		t.Error("expected has-immediate bit clear for register-indirect branch")
	}
	if w&0xF != 3 {
		t.Errorf("expected rm=3 in low nibble, got %d", w&0xF)
	}
}

func TestEncoder_ExternBranchProducesRelocation(t *testing.T) {
	obj, errs := assemble(t, "section .text\nextern foo\nb foo\n")
	if errs.HasErrors() {
		t.Fatalf("unexpected errors: %v", errs.Errors)
	}
	if len(obj.Relocations) != 1 || obj.Relocations[0].Name != "foo" {
		t.Fatalf("expected one relocation for extern foo, got %+v", obj.Relocations)
	}
	if obj.Relocations[0].Kind != encoder.RelocBranchRelativeLabel {
		t.Errorf("expected RelocBranchRelativeLabel, got %v", obj.Relocations[0].Kind)
	}
}

func TestEncoder_UndefinedLabelIsError(t *testing.T) {
	_, errs := assemble(t, "section .text\nb nowhere\n")
	if !errs.HasErrors() {
		t.Error("expected undefined label reference to be an error")
	}
}

// TestEncoder_MisalignedDataInText exercises scenario S6.
func TestEncoder_MisalignedDataInText(t *testing.T) {
	_, errs := assemble(t, "section .text\ndb #1, #2, #3\n")
	if !errs.HasErrors() {
		t.Error("expected misaligned data in a text section to be a SECTION error")
	}
}

func TestEncoder_InstructionOutsideSectionIsError(t *testing.T) {
	_, errs := assemble(t, "noop\n")
	if !errs.HasErrors() {
		t.Error("expected an instruction outside any section to be an error")
	}
}

func TestEncoder_MemAddressingModes(t *testing.T) {
	obj, errs := assemble(t, "section .text\nldr r0, r1\nldr r0, r1, r2\nldr r0, r1, #4\nldr r0, #100\n")
	if errs.HasErrors() {
		t.Fatalf("unexpected errors: %v", errs.Errors)
	}
	if len(obj.Code) != 16 {
		t.Fatalf("expected 4 words, got %d bytes", len(obj.Code))
	}
	// direct index: no has-base bit.
	if word(obj.Code, 0)&0x01000000 != 0 {
		t.Error("expected direct-index load to have no base bit")
	}
	// base+offset: has-base and has-immediate.
	w := word(obj.Code, 2)
	if w&0x01000000 == 0 || w&0x02000000 == 0 {
		t.Error("expected base+offset load to set both base and immediate bits")
	}
	if w&0xFFF != 4 {
		t.Errorf("expected offset 4, got %d", w&0xFFF)
	}
}

func TestEncoder_MemBaseLabelRelocation(t *testing.T) {
	obj, errs := assemble(t, "section .text\nextern table\nldr r0, r1, table\n")
	if errs.HasErrors() {
		t.Fatalf("unexpected errors: %v", errs.Errors)
	}
	if len(obj.Relocations) != 1 || obj.Relocations[0].Kind != encoder.RelocMemBaseOffsetLabel {
		t.Fatalf("expected a RelocMemBaseOffsetLabel relocation, got %+v", obj.Relocations)
	}
}

func TestEncoder_SwiImmediate(t *testing.T) {
	obj, errs := assemble(t, "section .text\nswi #1\n")
	if errs.HasErrors() {
		t.Fatalf("unexpected errors: %v", errs.Errors)
	}
	w := word(obj.Code, 0)
	if w>>28 != uint32(parser.CondAL) {
		t.Errorf("expected AL condition, got %d", w>>28)
	}
	if (w>>24)&0xF != 0xF {
		t.Errorf("expected SWI top nibble 0xF, got %#x", (w>>24)&0xF)
	}
	if w&0x00FFFFFF != 1 {
		t.Errorf("expected swi vector 1, got %d", w&0x00FFFFFF)
	}
}

// TestEncoder_DataLabelSelfReference verifies "$" always becomes a
// self-relative relocation (blank name) rather than being resolved in
// place by the assembler (spec §4.3's label-resolution pass, case (a)).
func TestEncoder_DataLabelSelfReference(t *testing.T) {
	obj, errs := assemble(t, "section .data\nhere: dw $\n")
	if errs.HasErrors() {
		t.Fatalf("unexpected errors: %v", errs.Errors)
	}
	if len(obj.Code) != 4 {
		t.Fatalf("expected a single 4-byte address slot, got %d bytes", len(obj.Code))
	}
	if len(obj.Relocations) != 1 || obj.Relocations[0].Name != "" || obj.Relocations[0].Kind != encoder.RelocDataAddr {
		t.Fatalf("expected one blank-name RelocDataAddr relocation, got %+v", obj.Relocations)
	}
}

func TestEncoder_SectionLayoutMonotonic(t *testing.T) {
	obj, errs := assemble(t, "section .text\nnoop\nnoop\nsection .data\ndb #1, #2\n")
	if errs.HasErrors() {
		t.Fatalf("unexpected errors: %v", errs.Errors)
	}
	if len(obj.Sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(obj.Sections))
	}
	if obj.Sections[1].End <= obj.Sections[0].End {
		t.Errorf("expected strictly increasing section end offsets, got %+v", obj.Sections)
	}
}

func TestEncoder_MarshalRoundTrip(t *testing.T) {
	obj, errs := assemble(t, "section .text\nglobal main\nmain: mov r0, #5\nhalt\n")
	if errs.HasErrors() {
		t.Fatalf("unexpected errors: %v", errs.Errors)
	}
	data, err := obj.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	back, err := encoder.ReadObjectFile(data)
	if err != nil {
		t.Fatalf("ReadObjectFile: %v", err)
	}
	if len(back.Code) != len(obj.Code) {
		t.Fatalf("code length mismatch after round trip: %d vs %d", len(back.Code), len(obj.Code))
	}
	if len(back.Symbols) != len(obj.Symbols) || back.Symbols[0].Name != "main" {
		t.Errorf("expected symbol table to survive round trip, got %+v", back.Symbols)
	}
}

// TestEncoder_TooManyLabelsIsLabelError exercises spec §3's string-table
// invariant: once interned label names push the table past the object
// format's 16-bit index field, the encoder must raise a LABEL diagnostic
// rather than silently wrapping the index.
func TestEncoder_TooManyLabelsIsLabelError(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("section .text\n")
	for i := 0; i < 20000; i++ {
		name := fmt.Sprintf("lbl_%05d", i)
		sb.WriteString(name)
		sb.WriteString(":\nglobal ")
		sb.WriteString(name)
		sb.WriteString("\n")
	}
	sb.WriteString("halt\n")

	toks := parser.Significant(parser.NewLexer(sb.String(), "test.as").TokenizeAll())
	items, perrs := parser.NewParser(toks).Parse()
	if perrs.HasErrors() {
		t.Fatalf("unexpected parse errors: %v", perrs.Errors)
	}
	_, eerrs := encoder.NewEncoder().Generate(items)
	if !eerrs.HasErrors() {
		t.Fatal("expected a LABEL error once the string table exceeds 65536 bytes")
	}

	var found bool
	for _, e := range eerrs.Errors {
		if e.Kind == parser.ErrorLabel && strings.Contains(e.Message, "too many labels") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a %q LABEL diagnostic, got: %v", "too many labels", eerrs.Errors)
	}
}
