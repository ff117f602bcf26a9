package vm

import "fmt"

// execSwi emulates the single supported system call, write(fd, ptr, len),
// using r0/r1/r2 as its arguments and echoing the bytes to Output. Grounded
// on simulate()'s SoftwareInterruptException catch block — unlike every
// other exception, Software Interrupt never halts the processor.
func (vm *VM) execSwi(instr uint32) {
	pc := vm.CPU.PC - 4
	fmt.Fprintf(vm.Output, ">>>>> Software Interrupt @ 0x%X\n", pc)

	stream, _ := vm.CPU.GetRegister(0)
	ptr, _ := vm.CPU.GetRegister(1)
	length, _ := vm.CPU.GetRegister(2)
	fmt.Fprintf(vm.Output, "write(%d, 0x%X, %d)\n", stream, ptr, length)

	for i := uint32(0); i < length; i++ {
		b, err := vm.Memory.ReadByte(ptr + i)
		if err != nil {
			break
		}
		vm.Output.Write([]byte{b})
	}
	fmt.Fprintln(vm.Output)
}
