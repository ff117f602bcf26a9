package loader_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/msedwar/m20/encoder"
	"github.com/msedwar/m20/loader"
	"github.com/msedwar/m20/parser"
	"github.com/msedwar/m20/vm"
)

func assemble(t *testing.T, src string) []byte {
	t.Helper()
	toks := parser.Significant(parser.NewLexer(src, "test.as").TokenizeAll())
	items, errs := parser.NewParser(toks).Parse()
	if errs.HasErrors() {
		t.Fatalf("unexpected parse errors: %v", errs.Errors)
	}
	obj, eerrs := encoder.NewEncoder().Generate(items)
	if eerrs.HasErrors() {
		t.Fatalf("unexpected encode errors: %v", eerrs.Errors)
	}
	return obj.Code
}

func TestLoadFile_RunsAssembledImage(t *testing.T) {
	img := assemble(t, "section .text\nmov r0, #5\nhalt\n")

	path := filepath.Join(t.TempDir(), "program.exe")
	if err := os.WriteFile(path, img, 0644); err != nil {
		t.Fatalf("failed to write test image: %v", err)
	}

	var out bytes.Buffer
	m := vm.NewVM(1<<16, &out)
	if err := loader.LoadFile(m, path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	m.Run()

	if got, _ := m.CPU.GetRegister(0); got != 5 {
		t.Errorf("expected r0=5, got %d", got)
	}
}

func TestLoadFile_MissingFileIsError(t *testing.T) {
	var out bytes.Buffer
	m := vm.NewVM(1<<10, &out)
	if err := loader.LoadFile(m, filepath.Join(t.TempDir(), "missing.exe")); err == nil {
		t.Error("expected an error loading a nonexistent image")
	}
}
