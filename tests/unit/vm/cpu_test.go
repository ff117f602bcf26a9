package vm_test

import (
	"bytes"
	"testing"

	"github.com/msedwar/m20/vm"
)

// TestCPU_RegisterIndexOutOfRangeIsError exercises the same invalid-index
// handling GetStatus/SetStatus already use: an out-of-range index is a
// reported error, not a panic.
func TestCPU_RegisterIndexOutOfRangeIsError(t *testing.T) {
	cpu := vm.NewCPU()

	if _, err := cpu.GetRegister(16); err == nil {
		t.Error("expected an error for register index 16")
	}
	if err := cpu.SetRegister(-1, 0); err == nil {
		t.Error("expected an error for register index -1")
	}

	if _, err := cpu.GetRegister(15); err != nil {
		t.Errorf("register 15 (pc) should be valid, got %v", err)
	}
}

// TestVM_CorruptRegisterIndexRaisesUsageAbort exercises a decoded instruction
// whose register-index field holds garbage a valid assembler would never
// emit: the VM must raise a Usage Abort rather than crash.
func TestVM_CorruptRegisterIndexRaisesUsageAbort(t *testing.T) {
	var out bytes.Buffer
	m := vm.NewVM(1<<10, &out)

	// MOV r0, r<reg> (D2 register-operand form) with the 16-bit operand
	// field set to 0xFFFF instead of a valid 0-15 register index: condition
	// AL (0xE) in bits[31:28], MOV's opcode (0x11) in bits[24:20], rd=0,
	// register (not immediate) operand.
	const mov = 0xE1100000
	if err := m.Memory.WriteWord(0, mov|0x0000FFFF); err != nil {
		t.Fatalf("WriteWord: %v", err)
	}
	m.Run()

	if !m.CPU.Halt {
		t.Error("expected processor to halt")
	}
	if !bytes.Contains(out.Bytes(), []byte("Usage Abort")) {
		t.Errorf("expected a Usage Abort diagnostic, got %q", out.String())
	}
}
