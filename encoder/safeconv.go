package encoder

import "fmt"

// safeUint16 checks that v fits the object format's 16-bit string-table
// index before truncating (spec §3: a string-table index ≥ 65536 is a LABEL
// error, "too many labels").
func safeUint16(v int) (uint16, error) {
	if v < 0 || v > 0xFFFF {
		return 0, fmt.Errorf("value %d does not fit in 16 bits", v)
	}
	return uint16(v), nil
}

// safeUint32 checks that v fits one of the object format's 32-bit header
// fields (spec §6.2) before truncating.
func safeUint32(v int) (uint32, error) {
	if v < 0 || int64(v) > 0xFFFFFFFF {
		return 0, fmt.Errorf("value %d does not fit in 32 bits", v)
	}
	return uint32(v), nil
}
